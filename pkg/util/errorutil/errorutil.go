package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/borderland/pin-issuer/internal/domain"
)

// Error codes rendered in the error envelope.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeEmailNotAuthorized = "EMAIL_NOT_AUTHORIZED"
	CodeDeliveryFailed     = "CODE_DELIVERY_FAILED"
	CodeExpired            = "CODE_EXPIRED"
	CodeMismatch           = "CODE_MISMATCH"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInvalidGrant       = "INVALID_GRANT"
	CodeInvalidToken       = "INVALID_TOKEN"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewInternalError(err error) error {
	return internalError(err)
}

func internalError(err error) *DomainError {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// sentinels maps issuer failures to their wire form. Order matters: a store
// failure wrapped inside another error is reported as the store failure.
var sentinels = []struct {
	err     error
	code    string
	message string
	status  int
}{
	{domain.ErrStoreUnavailable, CodeStoreUnavailable, "storage temporarily unavailable", http.StatusServiceUnavailable},
	{domain.ErrEmailNotAuthorized, CodeEmailNotAuthorized, "email is not authorized for this workspace", http.StatusForbidden},
	{domain.ErrCodeDeliveryFailed, CodeDeliveryFailed, "could not deliver sign-in code", http.StatusBadGateway},
	{domain.ErrCodeExpired, CodeExpired, "code expired or not found", http.StatusBadRequest},
	{domain.ErrCodeMismatch, CodeMismatch, "code does not match", http.StatusBadRequest},
	{domain.ErrTooManyAttempts, CodeTooManyAttempts, "too many attempts, request a new code", http.StatusTooManyRequests},
	{domain.ErrInvalidSignature, CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized},
	{domain.ErrTokenExpired, CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized},
	{domain.ErrIssuerMismatch, CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized},
	{domain.ErrInvalidClaims, CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized},
	{domain.ErrInvalidGrant, CodeInvalidGrant, "invalid grant", http.StatusBadRequest},
	{domain.ErrTooManyRequests, CodeTooManyRequests, "too many requests, try again later", http.StatusTooManyRequests},
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return &DomainError{Code: s.code, Message: s.message, HTTPStatus: s.status, Err: err}
		}
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &DomainError{Code: codeForStatus(fiberErr.Code), Message: fiberErr.Message, HTTPStatus: fiberErr.Code}
	}
	return internalError(err)
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status >= 500:
		return CodeInternal
	default:
		return CodeValidationFailed
	}
}
