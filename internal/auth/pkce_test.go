package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func TestComputeS256Challenge(t *testing.T) {
	require.Equal(t, rfcChallenge, ComputeS256Challenge(rfcVerifier))
}

func TestValidatePKCE(t *testing.T) {
	require.True(t, ValidatePKCE(rfcVerifier, rfcChallenge, PKCEMethodS256))
	require.False(t, ValidatePKCE(rfcVerifier, rfcChallenge, "plain"))
	require.False(t, ValidatePKCE(rfcVerifier+"x", rfcChallenge, PKCEMethodS256))
	require.False(t, ValidatePKCE("short", ComputeS256Challenge("short"), PKCEMethodS256))
}

func TestValidateCodeVerifier(t *testing.T) {
	require.True(t, ValidateCodeVerifier(rfcVerifier))
	require.True(t, ValidateCodeVerifier(strings.Repeat("a", 128)))
	require.False(t, ValidateCodeVerifier(strings.Repeat("a", 42)))
	require.False(t, ValidateCodeVerifier(strings.Repeat("a", 129)))
	require.False(t, ValidateCodeVerifier(strings.Repeat("a", 42)+"+"))
}

func TestValidateCodeChallenge(t *testing.T) {
	require.True(t, ValidateCodeChallenge(rfcChallenge))
	require.False(t, ValidateCodeChallenge(rfcChallenge[:42]))
	require.False(t, ValidateCodeChallenge(strings.Repeat("*", 43)))
}
