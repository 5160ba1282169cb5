package auth

import (
	"crypto/ed25519"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/borderland/pin-issuer/internal/domain"
)

const testIssuer = "http://localhost:3000"

func newTestSigner(t *testing.T, clock *fakeClock) *SubjectSigner {
	t.Helper()
	key, err := GenerateSigningKey()
	require.NoError(t, err)
	keys, err := NewKeySet(key, "", nil)
	require.NoError(t, err)
	return NewSubjectSigner(keys, testIssuer, time.Hour, clock.Now)
}

var alice = domain.Subject{
	UserID:      "a1b2c3d4-e5f6-4789-a012-bcdef0123456",
	Email:       "alice@example.com",
	WorkspaceID: "borderland",
}

func TestEncodeVerifyRoundTrip(t *testing.T) {
	clock := newFakeClock()
	signer := newTestSigner(t, clock)

	token, expiresAt, err := signer.Encode(alice)
	require.NoError(t, err)
	require.Equal(t, clock.Now().Add(time.Hour), expiresAt)

	subject, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, alice, subject)

	noEmail := domain.Subject{UserID: alice.UserID, WorkspaceID: alice.WorkspaceID}
	token, _, err = signer.Encode(noEmail)
	require.NoError(t, err)
	subject, err = signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, noEmail, subject)
}

func TestEncodeRejectsIncompleteSubject(t *testing.T) {
	signer := newTestSigner(t, newFakeClock())
	_, _, err := signer.Encode(domain.Subject{UserID: "u"})
	require.ErrorIs(t, err, domain.ErrInvalidClaims)
	_, _, err = signer.Encode(domain.Subject{WorkspaceID: "w"})
	require.ErrorIs(t, err, domain.ErrInvalidClaims)
}

func TestVerifyExpired(t *testing.T) {
	clock := newFakeClock()
	signer := newTestSigner(t, clock)

	token, _, err := signer.Encode(alice)
	require.NoError(t, err)

	clock.Advance(time.Hour - time.Second)
	_, err = signer.Verify(token)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = signer.Verify(token)
	require.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestVerifyIssuerMismatch(t *testing.T) {
	clock := newFakeClock()
	signer := newTestSigner(t, clock)
	other := NewSubjectSigner(signer.Keys(), "https://other.example.com", time.Hour, clock.Now)

	token, _, err := other.Encode(alice)
	require.NoError(t, err)
	_, err = signer.Verify(token)
	require.ErrorIs(t, err, domain.ErrIssuerMismatch)
}

func TestVerifyUnknownKey(t *testing.T) {
	clock := newFakeClock()
	signer := newTestSigner(t, clock)
	stranger := newTestSigner(t, clock)

	token, _, err := stranger.Encode(alice)
	require.NoError(t, err)
	_, err = signer.Verify(token)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyAcceptsRotatedKeys(t *testing.T) {
	clock := newFakeClock()
	oldSigner := newTestSigner(t, clock)
	oldToken, _, err := oldSigner.Encode(alice)
	require.NoError(t, err)

	newKey, err := GenerateSigningKey()
	require.NoError(t, err)
	oldID := oldSigner.Keys().ActiveID()
	oldPub, _ := oldSigner.Keys().PublicKey(oldID)
	keys, err := NewKeySet(newKey, "k2", map[string]ed25519.PublicKey{oldID: oldPub})
	require.NoError(t, err)
	rotated := NewSubjectSigner(keys, testIssuer, time.Hour, clock.Now)

	subject, err := rotated.Verify(oldToken)
	require.NoError(t, err)
	require.Equal(t, alice, subject)

	newToken, _, err := rotated.Encode(alice)
	require.NoError(t, err)
	_, err = oldSigner.Verify(newToken)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	clock := newFakeClock()
	signer := newTestSigner(t, clock)

	claims := &Claims{
		UserID:      alice.UserID,
		WorkspaceID: alice.WorkspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
	}

	hmac := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	hmac.Header["kid"] = signer.Keys().ActiveID()
	pub, _ := signer.Keys().PublicKey(signer.Keys().ActiveID())
	hmacToken, err := hmac.SignedString([]byte(pub))
	require.NoError(t, err)
	_, err = signer.Verify(hmacToken)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = signer.Verify(noneToken)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyRejectsMissingClaims(t *testing.T) {
	clock := newFakeClock()
	signer := newTestSigner(t, clock)

	sign := func(claims *Claims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
		token.Header["kid"] = signer.Keys().ActiveID()
		s, err := token.SignedString(signer.Keys().active)
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(clock.Now().Add(time.Hour))

	_, err := signer.Verify(sign(&Claims{UserID: "u", WorkspaceID: "w", RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer}}))
	require.ErrorIs(t, err, domain.ErrInvalidClaims)

	_, err = signer.Verify(sign(&Claims{WorkspaceID: "w", RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer, ExpiresAt: exp}}))
	require.ErrorIs(t, err, domain.ErrInvalidClaims)

	_, err = signer.Verify(sign(&Claims{UserID: "u", WorkspaceID: "w", RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer, ExpiresAt: exp, Subject: "someone-else"}}))
	require.ErrorIs(t, err, domain.ErrInvalidClaims)
}

func TestVerifyRejectsEveryBitFlip(t *testing.T) {
	signer := newTestSigner(t, newFakeClock())
	token, _, err := signer.Encode(alice)
	require.NoError(t, err)

	raw := []byte(token)
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), raw...)
			mutated[i] ^= 1 << bit
			if _, err := signer.Verify(string(mutated)); err == nil {
				t.Fatalf("mutation at byte %d bit %d was accepted", i, bit)
			}
		}
	}
}

func TestVerifyGarbage(t *testing.T) {
	signer := newTestSigner(t, newFakeClock())
	for _, token := range []string{"", "abc", "a.b.c", "a.b.c.d"} {
		_, err := signer.Verify(token)
		require.ErrorIs(t, err, domain.ErrInvalidSignature)
		require.True(t, domain.IsTokenError(err))
	}
}
