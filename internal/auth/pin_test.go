package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGeneratePIN(t *testing.T) {
	for _, length := range []int{4, 6, 8} {
		pin, err := GeneratePIN(length)
		require.NoError(t, err)
		require.Len(t, pin, length)
		require.Empty(t, strings.Trim(pin, "0123456789"))
	}

	_, err := GeneratePIN(0)
	require.Error(t, err)
}

func TestGeneratePINVaries(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		pin, err := GeneratePIN(8)
		require.NoError(t, err)
		seen[pin] = struct{}{}
	}
	require.Greater(t, len(seen), 45)
}

func TestHashAndComparePIN(t *testing.T) {
	hash, err := HashPIN("482913", bcrypt.MinCost)
	require.NoError(t, err)
	require.NotContains(t, hash, "482913")

	again, err := HashPIN("482913", bcrypt.MinCost)
	require.NoError(t, err)
	require.NotEqual(t, hash, again, "hashes are salted")

	require.NoError(t, ComparePIN(hash, "482913"))
	require.Error(t, ComparePIN(hash, "000000"))
	require.Error(t, ComparePIN(hash, ""))
	require.Error(t, ComparePIN(hash, strings.Repeat("4", 100)))
}
