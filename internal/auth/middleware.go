package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/borderland/pin-issuer/internal/domain"
)

const subjectKey = "auth_subject"

// Messages returned for bearer failures. Verification failures share one
// message so callers cannot tell expiry from a bad signature.
const (
	MessageInvalidHeader = "Missing or invalid authorization header"
	MessageInvalidToken  = "Invalid or expired token"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (domain.Subject, error)
}

// BearerMiddleware validates bearer tokens and stores the subject on the request.
type BearerMiddleware struct {
	tokens TokenVerifier
	logger *zap.Logger
}

// NewBearerMiddleware constructs middleware.
func NewBearerMiddleware(tokens TokenVerifier, logger *zap.Logger) *BearerMiddleware {
	return &BearerMiddleware{tokens: tokens, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *BearerMiddleware) Handle(c *fiber.Ctx) error {
	token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return unauthorized(c, MessageInvalidHeader)
	}

	subject, err := m.tokens.Verify(token)
	if err != nil {
		m.logger.Debug("token verification failed", zap.Error(err))
		return unauthorized(c, MessageInvalidToken)
	}

	c.Locals(subjectKey, subject)
	return c.Next()
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// SubjectFromContext retrieves the authenticated subject.
func SubjectFromContext(c *fiber.Ctx) (domain.Subject, bool) {
	subject, ok := c.Locals(subjectKey).(domain.Subject)
	return subject, ok
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": message})
}
