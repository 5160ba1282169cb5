package domain

import "time"

// Entry namespaces used by the issuer.
const (
	NamespacePinCode      = "pin-code"
	NamespaceChallenge    = "challenge"
	NamespacePKCEVerifier = "pkce-verifier"
	NamespaceRefreshToken = "refresh-token"
)

// Entry is a namespaced key/value record with an absolute expiry.
type Entry struct {
	Namespace string
	Key       string
	Value     []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}

// VisibleAt reports whether the entry is still logically present at now.
func (e *Entry) VisibleAt(now time.Time) bool {
	return e != nil && now.Before(e.ExpiresAt)
}

// Remaining returns how long the entry stays visible after now.
func (e *Entry) Remaining(now time.Time) time.Duration {
	if e == nil {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}
