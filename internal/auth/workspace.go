package auth

import (
	"github.com/gofiber/fiber/v2"
)

// RequireWorkspace ensures the authenticated subject belongs to workspaceID.
// A mismatch is reported like any other token failure.
func RequireWorkspace(workspaceID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject, ok := SubjectFromContext(c)
		if !ok || subject.WorkspaceID != workspaceID {
			return unauthorized(c, MessageInvalidToken)
		}
		return c.Next()
	}
}
