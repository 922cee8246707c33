package crypto

import (
	"errors"
	"sync"
)

var ErrSecretDestroyed = errors.New("secret already destroyed")

// Secret owns a buffer of secret bytes and zeroes it on Destroy.
// A Secret must not be copied after first use.
type Secret struct {
	mu        sync.Mutex
	b         []byte
	destroyed bool
}

// NewSecret takes ownership of b. The caller must not retain b.
func NewSecret(b []byte) *Secret {
	return &Secret{b: b}
}

// Use calls fn with the secret bytes. fn must not retain the slice.
func (s *Secret) Use(fn func([]byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSecretDestroyed
	}
	return fn(s.b)
}

// Len returns the length of the secret, or 0 once destroyed.
func (s *Secret) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.b)
}

// Destroy zeroes the secret. Safe to call more than once.
func (s *Secret) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	ClearBytes(s.b)
	s.b = nil
	s.destroyed = true
}

// WithSecret wraps b in a Secret for the duration of fn and destroys it on
// every exit path, including panics.
func WithSecret(b []byte, fn func(*Secret) error) error {
	s := NewSecret(b)
	defer s.Destroy()
	return fn(s)
}
