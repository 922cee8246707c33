package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultIters = 210000 // Default PBKDF2 iterations (OWASP minimum)

	// argon2id passes; Iterations outside 1..MaxArgon2Passes fall back to
	// DefaultArgon2Passes.
	DefaultArgon2Passes = 3
	MaxArgon2Passes     = 16

	argonKDFMemKB = 64 * 1024
)

// ErrNoKey is returned by callers that received a nil key from DeriveKey.
var ErrNoKey = errors.New("no key: empty password")

// KDF handles key derivation from passwords
type KDF struct {
	Iterations int
	Hash       HashStrategy
}

// DefaultKDF returns PBKDF2-HMAC-SHA256 with DefaultIters iterations.
func DefaultKDF() KDF {
	return KDF{
		Iterations: DefaultIters,
		Hash:       HashSHA256,
	}
}

// DeriveKey derives a KeySize key from a password and the installation secret.
//
// The result is deterministic for identical inputs. An empty password yields
// a nil key, which callers treat as "no key" and skip the operation.
func (k KDF) DeriveKey(password, installationSecret []byte) []byte {
	if len(password) == 0 {
		return nil
	}
	if k.Hash == HashArgon2id {
		return argon2.IDKey(password, installationSecret, uint32(k.Passes()), argonKDFMemKB, argonThreads, KeySize)
	}
	fn, ok := k.Hash.New()
	if !ok {
		fn = sha256.New
	}
	return pbkdf2.Key(password, installationSecret, k.Passes(), KeySize, fn)
}

// Passes returns the iteration count DeriveKey actually uses.
func (k KDF) Passes() int {
	if k.Hash == HashArgon2id {
		if k.Iterations < 1 || k.Iterations > MaxArgon2Passes {
			return DefaultArgon2Passes
		}
		return k.Iterations
	}
	if k.Iterations <= 0 {
		return DefaultIters
	}
	return k.Iterations
}

// String describes the effective algorithm and cost.
func (k KDF) String() string {
	if k.Hash == HashArgon2id {
		return fmt.Sprintf("argon2id, %d passes, %d MiB, %d threads", k.Passes(), argonKDFMemKB/1024, argonThreads)
	}
	name := k.Hash
	if _, ok := k.Hash.New(); !ok {
		name = HashSHA256
	}
	return fmt.Sprintf("PBKDF2-HMAC-%s, %d iterations", name, k.Passes())
}

// ExpandKey derives n bytes from secret with HKDF-SHA256, bound to salt and info.
func ExpandKey(secret, salt []byte, info string, n int) ([]byte, error) {
	out := make([]byte, n)
	r := hkdf.New(sha256.New, secret, salt, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("key expansion failed: %w", err)
	}
	return out, nil
}
