package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/borderland/pin-issuer/internal/domain"
)

// SubjectSigner issues and validates EdDSA-signed access tokens.
type SubjectSigner struct {
	keys   *KeySet
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSubjectSigner builds a new signer.
func NewSubjectSigner(keys *KeySet, issuer string, ttl time.Duration, now func() time.Time) *SubjectSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &SubjectSigner{keys: keys, issuer: issuer, ttl: ttl, now: now}
}

// Claims describes JWT payload.
type Claims struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	WorkspaceID string `json:"workspace_id"`
	jwt.RegisteredClaims
}

// Keys exposes the key set for publishing.
func (s *SubjectSigner) Keys() *KeySet {
	return s.keys
}

// TTL returns the access token lifetime.
func (s *SubjectSigner) TTL() time.Duration {
	return s.ttl
}

// Issuer returns the configured issuer string.
func (s *SubjectSigner) Issuer() string {
	return s.issuer
}

// Encode builds and signs a JWT for the subject.
func (s *SubjectSigner) Encode(subject domain.Subject) (string, time.Time, error) {
	if err := validateSubject(subject); err != nil {
		return "", time.Time{}, err
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)
	claims := &Claims{
		UserID:      subject.UserID,
		Email:       subject.Email,
		WorkspaceID: subject.WorkspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = s.keys.ActiveID()
	tokenString, err := token.SignedString(s.keys.active)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates a token and returns its subject.
//
// Failures are domain.ErrInvalidSignature (malformed, unknown key, bad
// signature), domain.ErrTokenExpired, domain.ErrIssuerMismatch or
// domain.ErrInvalidClaims.
func (s *SubjectSigner) Verify(tokenStr string) (domain.Subject, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(tokenStr), &claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		key, ok := s.keys.PublicKey(kid)
		if !ok {
			return nil, errors.New("unknown signing key")
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return domain.Subject{}, domain.ErrInvalidSignature
	}

	if claims.ExpiresAt == nil {
		return domain.Subject{}, domain.ErrInvalidClaims
	}
	if !s.now().Before(claims.ExpiresAt.Time) {
		return domain.Subject{}, domain.ErrTokenExpired
	}
	if claims.Issuer != s.issuer {
		return domain.Subject{}, domain.ErrIssuerMismatch
	}
	if claims.Subject != "" && claims.Subject != claims.UserID {
		return domain.Subject{}, domain.ErrInvalidClaims
	}

	subject := domain.Subject{
		UserID:      claims.UserID,
		Email:       claims.Email,
		WorkspaceID: claims.WorkspaceID,
	}
	if err := validateSubject(subject); err != nil {
		return domain.Subject{}, err
	}
	return subject, nil
}

func validateSubject(subject domain.Subject) error {
	if strings.TrimSpace(subject.UserID) == "" || strings.TrimSpace(subject.WorkspaceID) == "" {
		return domain.ErrInvalidClaims
	}
	return nil
}
