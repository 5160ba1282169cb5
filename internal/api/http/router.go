package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/borderland/pin-issuer/internal/api/http/handlers"
	"github.com/borderland/pin-issuer/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	User           *handlers.UserHandler
	Discovery      *handlers.DiscoveryHandler
	AuthMiddleware *auth.BearerMiddleware
	WorkspaceID    string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.AuthMiddleware.Handle, auth.RequireWorkspace(cfg.WorkspaceID), cfg.Health.Metrics)

	app.Post("/authorize", cfg.Auth.Authorize)
	app.Post("/token", cfg.Auth.Token)
	app.Get("/user", cfg.User.Get)

	wellKnown := app.Group("/.well-known")
	wellKnown.Get("/jwks.json", cfg.Discovery.JWKS)
	wellKnown.Get("/oauth-authorization-server", cfg.Discovery.Metadata)
}
