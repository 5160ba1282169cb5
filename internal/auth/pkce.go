package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// PKCE methods.
const (
	PKCEMethodS256 = "S256"
)

const pkceUnreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// ComputeS256Challenge derives the S256 code challenge for a verifier.
func ComputeS256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidateCodeVerifier checks the RFC 7636 verifier grammar.
func ValidateCodeVerifier(verifier string) bool {
	if len(verifier) < 43 || len(verifier) > 128 {
		return false
	}
	return strings.Trim(verifier, pkceUnreserved) == ""
}

// ValidateCodeChallenge checks that challenge looks like an S256 digest.
func ValidateCodeChallenge(challenge string) bool {
	if len(challenge) != 43 {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(challenge)
	return err == nil
}

// ValidatePKCE reports whether verifier satisfies challenge under method.
func ValidatePKCE(verifier, challenge, method string) bool {
	if method != PKCEMethodS256 || !ValidateCodeVerifier(verifier) {
		return false
	}
	computed := ComputeS256Challenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
