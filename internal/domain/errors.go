package domain

import "errors"

// Expected failures of the issuer. Callers branch on them with errors.Is.
var (
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrEmailNotAuthorized = errors.New("email not authorized")
	ErrCodeDeliveryFailed = errors.New("code delivery failed")
	ErrCodeExpired        = errors.New("code expired")
	ErrCodeMismatch       = errors.New("code mismatch")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrTooManyRequests    = errors.New("too many requests")
	ErrInvalidGrant       = errors.New("invalid grant")

	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrIssuerMismatch   = errors.New("token issuer mismatch")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// IsTokenError reports whether err is any bearer-token verification failure.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrIssuerMismatch) ||
		errors.Is(err, ErrInvalidClaims)
}
