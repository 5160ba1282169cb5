package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/borderland/pin-issuer/internal/api/dto"
	"github.com/borderland/pin-issuer/internal/domain"
	"github.com/borderland/pin-issuer/internal/service"
	"github.com/borderland/pin-issuer/pkg/util/errorutil"
)

// AuthHandler exposes the code and token endpoints.
type AuthHandler struct {
	issuer *service.IssuerService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(issuer *service.IssuerService) *AuthHandler {
	return &AuthHandler{issuer: issuer}
}

// Authorize handles POST /authorize.
func (h *AuthHandler) Authorize(c *fiber.Ctx) error {
	var req dto.AuthorizeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		return errorutil.NewValidationError("valid email required", nil)
	}

	challenge, err := h.issuer.RequestCode(c.UserContext(), service.AuthorizeInput{
		Email:               req.Email,
		ClientID:            req.ClientID,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	})
	if err != nil {
		if challenge == nil {
			return err
		}
		// The stored PIN stays redeemable, so the challenge ID rides along with the error.
		failed := *errorutil.ToDomainError(err)
		failed.Details = map[string]any{
			"challenge_id": challenge.ID,
			"expires_at":   challenge.ExpiresAt,
		}
		return &failed
	}

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": dto.AuthorizeResponse{ChallengeID: challenge.ID, ExpiresAt: challenge.ExpiresAt},
	})
}

// Token handles POST /token for the authorization_code and refresh_token grants.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	var (
		tokens *domain.TokenSet
		err    error
	)
	switch req.GrantType {
	case "", dto.GrantTypeAuthorizationCode:
		if req.ChallengeID == "" || req.PIN == "" {
			return errorutil.NewValidationError("challenge_id and pin required", nil)
		}
		tokens, err = h.issuer.ExchangeCode(c.UserContext(), service.ExchangeInput{
			ChallengeID:  req.ChallengeID,
			PIN:          req.PIN,
			CodeVerifier: req.CodeVerifier,
		})
	case dto.GrantTypeRefreshToken:
		if req.RefreshToken == "" {
			return errorutil.NewValidationError("refresh_token required", nil)
		}
		tokens, err = h.issuer.Refresh(c.UserContext(), req.RefreshToken)
	default:
		return errorutil.NewDomainError("UNSUPPORTED_GRANT_TYPE", "unsupported grant_type", http.StatusBadRequest,
			map[string]any{"grant_type": req.GrantType})
	}
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(dto.TokenResponse{
		AccessToken:  tokens.AccessToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    int64(h.issuer.AccessTokenTTL().Seconds()),
		RefreshToken: tokens.RefreshToken,
	})
}
