package dto

import "time"

// Grant types accepted by the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// AuthorizeRequest payload for a sign-in code.
type AuthorizeRequest struct {
	Email               string `json:"email" form:"email"`
	ClientID            string `json:"client_id" form:"client_id"`
	CodeChallenge       string `json:"code_challenge" form:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method" form:"code_challenge_method"`
}

// AuthorizeResponse references the pending code.
type AuthorizeResponse struct {
	ChallengeID string    `json:"challenge_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenRequest payload for both grant types.
type TokenRequest struct {
	GrantType    string `json:"grant_type" form:"grant_type"`
	ChallengeID  string `json:"challenge_id" form:"challenge_id"`
	PIN          string `json:"pin" form:"pin"`
	CodeVerifier string `json:"code_verifier" form:"code_verifier"`
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// TokenResponse follows the OAuth token response shape.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ServerMetadata is the authorization server discovery document.
type ServerMetadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	UserinfoEndpoint              string   `json:"userinfo_endpoint"`
	JWKSURI                       string   `json:"jwks_uri"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
	SigningAlgValuesSupported     []string `json:"id_token_signing_alg_values_supported"`
}
