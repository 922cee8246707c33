package keyring

import (
	"errors"
	"fmt"
	"sync"

	"github.com/illarion/walletlock/internal/crypto"
)

// ErrUnprotect is returned when a protected blob cannot be opened with the
// installation's key.
var ErrUnprotect = errors.New("platform unprotect failed")

// Protector applies an installation-bound outer layer to secret material.
type Protector interface {
	Protect(plaintext []byte) ([]byte, error)
	Unprotect(protected []byte) ([]byte, error)
}

// KeyringProtector seals data with a random key kept in the OS keyring under
// the installation id. Data protected on one installation cannot be opened
// on another.
type KeyringProtector struct {
	installationID string

	mu  sync.Mutex
	key []byte
}

// NewKeyringProtector returns a protector bound to installationID. The key is
// created in the keyring on first Protect.
func NewKeyringProtector(installationID string) *KeyringProtector {
	return &KeyringProtector{installationID: installationID}
}

func (p *KeyringProtector) loadKey(create bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key != nil {
		return p.key, nil
	}

	key, err := GetKey(p.installationID)
	switch {
	case err == nil:
	case errors.Is(err, ErrKeyNotFound) && create:
		key, err = crypto.GenerateRandom(crypto.KeySize)
		if err != nil {
			return nil, err
		}
		if err := SaveKey(p.installationID, key); err != nil {
			return nil, fmt.Errorf("failed to save protection key: %w", err)
		}
	default:
		return nil, err
	}

	if len(key) != crypto.KeySize {
		return nil, crypto.ErrInvalidKey
	}
	p.key = key
	return key, nil
}

// Protect encrypts plaintext under the installation key.
func (p *KeyringProtector) Protect(plaintext []byte) ([]byte, error) {
	key, err := p.loadKey(true)
	if err != nil {
		return nil, err
	}
	enc, err := crypto.NewEncryptor(append([]byte(nil), key...))
	if err != nil {
		return nil, err
	}
	defer enc.Destroy()
	return enc.EncryptAD(plaintext, []byte(p.installationID))
}

// Unprotect reverses Protect.
func (p *KeyringProtector) Unprotect(protected []byte) ([]byte, error) {
	key, err := p.loadKey(false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprotect, err)
	}
	enc, err := crypto.NewEncryptor(append([]byte(nil), key...))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprotect, err)
	}
	defer enc.Destroy()
	plaintext, err := enc.DecryptAD(protected, []byte(p.installationID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprotect, err)
	}
	return plaintext, nil
}

// Forget zeroes the cached key. The keyring entry is left in place.
func (p *KeyringProtector) Forget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	crypto.ClearBytes(p.key)
	p.key = nil
}

// NopProtector passes data through unchanged. Used when no keyring is
// available (headless hosts, CI).
type NopProtector struct{}

func (NopProtector) Protect(plaintext []byte) ([]byte, error) {
	return append([]byte(nil), plaintext...), nil
}

func (NopProtector) Unprotect(protected []byte) ([]byte, error) {
	return append([]byte(nil), protected...), nil
}
