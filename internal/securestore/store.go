// Package securestore keeps encrypted values under obfuscated keys in a
// storage.Substrate.
//
// Every logical key is hashed together with a per-installation root secret,
// so the substrate never holds a recognizable key name. Values are sealed with
// XChaCha20-Poly1305 under a key expanded from the root secret and bound to
// the obfuscated key. The root secret is created once, on first use, and is
// wrapped by the platform Protector before it is written.
package securestore

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/illarion/walletlock/internal/crypto"
	"github.com/illarion/walletlock/internal/keyring"
	"github.com/illarion/walletlock/internal/storage"
)

// RootSecretKey is the reserved substrate key holding the protected root secret.
const RootSecretKey = "__root_secret"

const (
	rootSecretSize = 32
	valueKeyInfo   = "walletlock-value"
)

var (
	ErrNotFound       = storage.ErrNotFound
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	ErrClosed         = errors.New("store is closed")
)

// Store is the secure key/value store. It is safe for concurrent use.
type Store struct {
	sub       storage.Substrate
	protector keyring.Protector

	mu     sync.Mutex
	root   []byte
	closed bool
}

// New returns a store over sub. A nil protector stores the root secret unwrapped.
func New(sub storage.Substrate, protector keyring.Protector) *Store {
	if protector == nil {
		protector = keyring.NopProtector{}
	}
	return &Store{sub: sub, protector: protector}
}

// EnsureRootSecret loads the root secret, creating it if the substrate has
// none. An existing root secret is never overwritten.
func (s *Store) EnsureRootSecret() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.rootLocked()
	return err
}

func (s *Store) rootLocked() ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.root != nil {
		return s.root, nil
	}

	encoded, found, err := s.sub.Get(RootSecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read root secret: %w", err)
	}
	if found {
		protected, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: root secret encoding", ErrStorageCorrupt)
		}
		root, err := s.protector.Unprotect(protected)
		if err != nil {
			return nil, fmt.Errorf("%w: root secret: %v", ErrStorageCorrupt, err)
		}
		if len(root) != rootSecretSize {
			crypto.ClearBytes(root)
			return nil, fmt.Errorf("%w: root secret size", ErrStorageCorrupt)
		}
		s.root = root
		return root, nil
	}

	root, err := crypto.GenerateRandom(rootSecretSize)
	if err != nil {
		return nil, err
	}
	protected, err := s.protector.Protect(root)
	if err != nil {
		crypto.ClearBytes(root)
		return nil, fmt.Errorf("failed to protect root secret: %w", err)
	}
	if err := s.sub.Put(RootSecretKey, base64.StdEncoding.EncodeToString(protected)); err != nil {
		crypto.ClearBytes(root)
		return nil, fmt.Errorf("failed to store root secret: %w", err)
	}
	s.root = root
	return root, nil
}

// obfuscate returns hex(sha256(root || logicalKey)).
func obfuscate(root []byte, logicalKey string) string {
	h := sha256.New()
	h.Write(root)
	h.Write([]byte(logicalKey))
	return hex.EncodeToString(h.Sum(nil))
}

func valueKey(root []byte, obfuscated string) ([]byte, error) {
	return crypto.ExpandKey(root, []byte(obfuscated), valueKeyInfo, crypto.KeySize)
}

// ObfuscatedKey returns the substrate key used for logicalKey.
func (s *Store) ObfuscatedKey(logicalKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	root, err := s.rootLocked()
	if err != nil {
		return "", err
	}
	return obfuscate(root, logicalKey), nil
}

// Set encrypts value and writes it under logicalKey. The write is durable
// when Set returns.
func (s *Store) Set(logicalKey string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.rootLocked()
	if err != nil {
		return err
	}
	obf := obfuscate(root, logicalKey)
	key, err := valueKey(root, obf)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(key)

	sealed, err := crypto.SealX(key, value, []byte(obf))
	if err != nil {
		return fmt.Errorf("failed to seal value: %w", err)
	}
	return s.sub.Put(obf, base64.StdEncoding.EncodeToString(sealed))
}

// Get decrypts the value stored under logicalKey. It returns ErrNotFound when
// the key is absent and ErrStorageCorrupt when the ciphertext cannot be
// decoded or authenticated.
func (s *Store) Get(logicalKey string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.rootLocked()
	if err != nil {
		return nil, err
	}
	obf := obfuscate(root, logicalKey)
	encoded, found, err := s.sub.Get(obf)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, logicalKey)
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: bad encoding", ErrStorageCorrupt, logicalKey)
	}
	key, err := valueKey(root, obf)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(key)

	value, err := crypto.OpenX(key, sealed, []byte(obf))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStorageCorrupt, logicalKey, err)
	}
	return value, nil
}

// Delete removes logicalKey. Deleting an absent key is not an error.
func (s *Store) Delete(logicalKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.rootLocked()
	if err != nil {
		return err
	}
	return s.sub.Delete(obfuscate(root, logicalKey))
}

// Has reports whether logicalKey has a stored value.
func (s *Store) Has(logicalKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.rootLocked()
	if err != nil {
		return false, err
	}
	return s.sub.Has(obfuscate(root, logicalKey))
}

func (s *Store) GetString(logicalKey string) (string, error) {
	b, err := s.Get(logicalKey)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Store) SetString(logicalKey, value string) error {
	return s.Set(logicalKey, []byte(value))
}

// GetJSON decodes the value under logicalKey into v.
func (s *Store) GetJSON(logicalKey string, v any) error {
	b, err := s.Get(logicalKey)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStorageCorrupt, logicalKey, err)
	}
	return nil
}

// SetJSON encodes v and stores it under logicalKey.
func (s *Store) SetJSON(logicalKey string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", logicalKey, err)
	}
	return s.Set(logicalKey, b)
}

// DeriveSecret expands n bytes from the root secret for info. The root secret
// itself never leaves the store.
func (s *Store) DeriveSecret(info string, n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.rootLocked()
	if err != nil {
		return nil, err
	}
	return crypto.ExpandKey(root, nil, info, n)
}

// Reset deletes the root secret and every entry. All previously stored
// values become unrecoverable.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	keys, err := s.sub.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == RootSecretKey {
			continue
		}
		if err := s.sub.Delete(k); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
	}
	if err := s.sub.Delete(RootSecretKey); err != nil {
		return fmt.Errorf("failed to delete root secret: %w", err)
	}
	crypto.ClearBytes(s.root)
	s.root = nil
	return nil
}

// Substrate returns the underlying substrate.
func (s *Store) Substrate() storage.Substrate {
	return s.sub
}

// Close zeroes the cached root secret and closes the substrate.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	crypto.ClearBytes(s.root)
	s.root = nil
	return s.sub.Close()
}
