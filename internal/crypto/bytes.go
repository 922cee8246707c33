package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

// ClearBytes overwrites b with zeros.
func ClearBytes(b []byte) {
	clear(b)
}

// ConstantTimeCompare reports whether a and b are equal without leaking
// the position of the first difference.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom returns n bytes from crypto/rand.
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
