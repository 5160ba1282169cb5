package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/borderland/pin-issuer/internal/api/dto"
	"github.com/borderland/pin-issuer/internal/auth"
)

// DiscoveryHandler publishes issuer metadata and verification keys.
type DiscoveryHandler struct {
	signer *auth.SubjectSigner
}

// NewDiscoveryHandler constructs handler.
func NewDiscoveryHandler(signer *auth.SubjectSigner) *DiscoveryHandler {
	return &DiscoveryHandler{signer: signer}
}

// JWKS handles GET /.well-known/jwks.json.
func (h *DiscoveryHandler) JWKS(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "public, max-age=300")
	return c.JSON(h.signer.Keys().JWKS())
}

// Metadata handles GET /.well-known/oauth-authorization-server.
func (h *DiscoveryHandler) Metadata(c *fiber.Ctx) error {
	base := strings.TrimRight(h.signer.Issuer(), "/")
	return c.JSON(dto.ServerMetadata{
		Issuer:                        h.signer.Issuer(),
		AuthorizationEndpoint:         base + "/authorize",
		TokenEndpoint:                 base + "/token",
		UserinfoEndpoint:              base + "/user",
		JWKSURI:                       base + "/.well-known/jwks.json",
		GrantTypesSupported:           []string{dto.GrantTypeAuthorizationCode, dto.GrantTypeRefreshToken},
		CodeChallengeMethodsSupported: []string{auth.PKCEMethodS256},
		SigningAlgValuesSupported:     []string{"EdDSA"},
	})
}
