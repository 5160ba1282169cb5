package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// maxCandidateLength bounds what is handed to bcrypt; longer input can never match a PIN.
const maxCandidateLength = 32

// GeneratePIN returns a uniformly random numeric PIN of the given length.
func GeneratePIN(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("invalid pin length %d", length)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// HashPIN hashes a PIN with a per-hash salt at the configured cost.
func HashPIN(pin string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePIN verifies a candidate against its hashed value.
func ComparePIN(hashed, candidate string) error {
	if candidate == "" || len(candidate) > maxCandidateLength {
		return errors.New("pin mismatch")
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(candidate))
}
