package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/borderland/pin-issuer/internal/auth"
	"github.com/borderland/pin-issuer/internal/domain"
	"github.com/borderland/pin-issuer/internal/service"
)

// UserHandler serves the userinfo endpoint.
type UserHandler struct {
	issuer *service.IssuerService
	logger *zap.Logger
}

// NewUserHandler constructs handler.
func NewUserHandler(issuer *service.IssuerService, logger *zap.Logger) *UserHandler {
	return &UserHandler{issuer: issuer, logger: logger}
}

// Get handles GET /user. Token failures answer with a flat error body.
func (h *UserHandler) Get(c *fiber.Ctx) error {
	token, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": auth.MessageInvalidHeader})
	}

	info, err := h.issuer.UserInfo(c.UserContext(), token)
	if err != nil {
		if domain.IsTokenError(err) {
			h.logger.Debug("userinfo token rejected", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": auth.MessageInvalidToken})
		}
		return err
	}
	return c.JSON(info)
}
