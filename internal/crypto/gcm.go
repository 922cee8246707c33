package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrInvalidKey        = errors.New("invalid key size")
)

// Encryptor seals records with AES-256-GCM. Sealed layout is
// nonce || ciphertext || tag.
type Encryptor struct {
	key  []byte
	aead cipher.AEAD
}

// NewEncryptor takes ownership of key; Destroy zeroes it.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &Encryptor{key: key, aead: aead}, nil
}

// Encrypt is EncryptAD without associated data.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	return e.EncryptAD(plaintext, nil)
}

// EncryptAD seals plaintext and authenticates ad alongside it.
func (e *Encryptor) EncryptAD(plaintext, ad []byte) ([]byte, error) {
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return e.aead.Seal(out, out[:NonceSize], plaintext, ad), nil
}

// Decrypt is DecryptAD without associated data.
func (e *Encryptor) Decrypt(sealed []byte) ([]byte, error) {
	return e.DecryptAD(sealed, nil)
}

// DecryptAD opens a record produced by EncryptAD with the same ad.
func (e *Encryptor) DecryptAD(sealed, ad []byte) ([]byte, error) {
	if len(sealed) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}
	plaintext, err := e.aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], ad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Destroy zeroes the key. The Encryptor must not be used afterwards.
func (e *Encryptor) Destroy() {
	ClearBytes(e.key)
	e.aead = nil
}
