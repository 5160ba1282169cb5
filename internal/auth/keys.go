package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/borderland/pin-issuer/internal/config"
)

// KeySet holds the active Ed25519 signing key and every public key that is
// still accepted for verification. Old keys stay in the set during rotation
// so tokens signed before the switch keep verifying until they expire.
type KeySet struct {
	activeID string
	active   ed25519.PrivateKey
	public   map[string]ed25519.PublicKey
}

// NewKeySet builds a key set. An empty activeID is derived from the public key.
func NewKeySet(active ed25519.PrivateKey, activeID string, verify map[string]ed25519.PublicKey) (*KeySet, error) {
	if len(active) != ed25519.PrivateKeySize {
		return nil, errors.New("signing key must be an ed25519 private key")
	}
	pub := active.Public().(ed25519.PublicKey)
	if activeID == "" {
		activeID = KeyID(pub)
	}

	public := map[string]ed25519.PublicKey{activeID: pub}
	for kid, key := range verify {
		if kid == activeID {
			continue
		}
		if len(key) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("verify key %q must be %d bytes", kid, ed25519.PublicKeySize)
		}
		public[kid] = key
	}
	return &KeySet{activeID: activeID, active: active, public: public}, nil
}

// LoadKeySet decodes signing configuration. When no signing key is configured
// and generate is true, an ephemeral key is created; tokens then stop
// verifying after a restart.
func LoadKeySet(cfg config.SigningConfig, generate bool) (*KeySet, bool, error) {
	var (
		private   ed25519.PrivateKey
		generated bool
	)
	switch raw := strings.TrimSpace(cfg.SigningKey); {
	case raw != "":
		keyBytes, err := decodeBase64(raw)
		if err != nil {
			return nil, false, fmt.Errorf("decode signing key: %w", err)
		}
		switch len(keyBytes) {
		case ed25519.SeedSize:
			private = ed25519.NewKeyFromSeed(keyBytes)
		case ed25519.PrivateKeySize:
			private = ed25519.PrivateKey(keyBytes)
		default:
			return nil, false, fmt.Errorf("signing key must be a %d byte seed or %d byte private key", ed25519.SeedSize, ed25519.PrivateKeySize)
		}
	case generate:
		key, err := GenerateSigningKey()
		if err != nil {
			return nil, false, err
		}
		private = key
		generated = true
	default:
		return nil, false, errors.New("signing key is required")
	}

	verify := make(map[string]ed25519.PublicKey, len(cfg.VerifyKeys))
	for kid, raw := range cfg.VerifyKeys {
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, false, errors.New("verify key id is required")
		}
		keyBytes, err := decodeBase64(strings.TrimSpace(raw))
		if err != nil {
			return nil, false, fmt.Errorf("decode verify key %q: %w", kid, err)
		}
		verify[kid] = ed25519.PublicKey(keyBytes)
	}

	keys, err := NewKeySet(private, strings.TrimSpace(cfg.SigningKeyID), verify)
	if err != nil {
		return nil, false, err
	}
	return keys, generated, nil
}

// GenerateSigningKey creates a new Ed25519 private key.
func GenerateSigningKey() (ed25519.PrivateKey, error) {
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return private, nil
}

// KeyID derives a stable key identifier from a public key.
func KeyID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}

// ActiveID returns the identifier of the signing key.
func (k *KeySet) ActiveID() string {
	return k.activeID
}

// PublicKey returns the verification key for kid.
func (k *KeySet) PublicKey(kid string) (ed25519.PublicKey, bool) {
	key, ok := k.public[kid]
	return key, ok
}

// JWK is an OKP public key as published in the key set document.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
}

// JWKSet is the document served at the jwks endpoint.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWKS renders every verification key, ordered by key ID.
func (k *KeySet) JWKS() JWKSet {
	kids := make([]string, 0, len(k.public))
	for kid := range k.public {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	set := JWKSet{Keys: make([]JWK, 0, len(kids))}
	for _, kid := range kids {
		set.Keys = append(set.Keys, JWK{
			Kty: "OKP",
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(k.public[kid]),
			Kid: kid,
			Alg: "EdDSA",
			Use: "sig",
		})
	}
	return set
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(value, "="))
}
