package seedcipher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/illarion/walletlock/internal/crypto"
	"github.com/illarion/walletlock/internal/keyring"
	"github.com/illarion/walletlock/internal/storage"
)

var (
	ErrWrongPassword  = errors.New("wrong password")
	ErrStorageCorrupt = storage.ErrStorageCorrupt
)

// Record is the persisted form of an encrypted seed. All ciphertexts are
// base64 strings.
type Record struct {
	Lanes          [crypto.LaneCount]string
	Seed           string
	DerivationPath string
}

// Cipher encrypts and decrypts wallet seeds. It holds no per-wallet state and
// is safe for concurrent use.
type Cipher struct {
	kdf                crypto.KDF
	laneHash           crypto.HashStrategy
	protector          keyring.Protector
	installationSecret []byte
}

// Option configures a Cipher.
type Option func(*Cipher)

// WithKDF overrides the password key derivation.
func WithKDF(kdf crypto.KDF) Option {
	return func(c *Cipher) { c.kdf = kdf }
}

// WithLaneHash sets the hash used for the four lanes.
func WithLaneHash(h crypto.HashStrategy) Option {
	return func(c *Cipher) { c.laneHash = h }
}

// WithProtector sets the platform protection layer.
func WithProtector(p keyring.Protector) Option {
	return func(c *Cipher) { c.protector = p }
}

// New returns a Cipher salted with installationSecret. The cipher keeps its
// own copy of the secret; call Destroy when done.
func New(installationSecret []byte, opts ...Option) *Cipher {
	c := &Cipher{
		kdf:                crypto.DefaultKDF(),
		laneHash:           crypto.HashSHA384,
		protector:          keyring.NopProtector{},
		installationSecret: append([]byte(nil), installationSecret...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Destroy zeroes the cipher's copy of the installation secret.
func (c *Cipher) Destroy() {
	crypto.ClearBytes(c.installationSecret)
	c.installationSecret = nil
}

func laneInfo(i int) string {
	return fmt.Sprintf("lane-%d", i+1)
}

// keys derives the password key and its lanes. The caller destroys both.
func (c *Cipher) keys(password []byte) ([]byte, crypto.HashLaneSet, error) {
	key := c.kdf.DeriveKey(password, c.installationSecret)
	if key == nil {
		return nil, crypto.HashLaneSet{}, crypto.ErrNoKey
	}
	lanes, err := crypto.SplitIntoLanes(key, c.laneHash)
	if err != nil {
		crypto.ClearBytes(key)
		return nil, crypto.HashLaneSet{}, err
	}
	return key, lanes, nil
}

// sealWith encrypts plaintext under a copy of key, leaving key intact.
func sealWith(key, plaintext []byte) ([]byte, error) {
	enc, err := crypto.NewEncryptor(append([]byte(nil), key...))
	if err != nil {
		return nil, err
	}
	defer enc.Destroy()
	return enc.Encrypt(plaintext)
}

func openWith(key, ciphertext []byte) ([]byte, error) {
	enc, err := crypto.NewEncryptor(append([]byte(nil), key...))
	if err != nil {
		return nil, err
	}
	defer enc.Destroy()
	return enc.Decrypt(ciphertext)
}

// Encrypt seals seed under password. The seed buffer is not modified.
func (c *Cipher) Encrypt(ctx context.Context, seed, password []byte, derivationPath string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, lanes, err := c.keys(password)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(key)
	defer lanes.Destroy()

	inner1, inner2, err := lanes.InnerKeys()
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(inner1)
	defer crypto.ClearBytes(inner2)

	rec := &Record{DerivationPath: derivationPath}
	for i, lane := range lanes {
		wrap, err := crypto.ExpandKey(key, nil, laneInfo(i), crypto.KeySize)
		if err != nil {
			return nil, err
		}
		sealed, err := sealWith(wrap, lane)
		crypto.ClearBytes(wrap)
		if err != nil {
			return nil, fmt.Errorf("failed to seal lane %d: %w", i+1, err)
		}
		rec.Lanes[i] = base64.StdEncoding.EncodeToString(sealed)
	}

	inner, err := sealWith(inner2, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to seal seed: %w", err)
	}
	outer, err := sealWith(inner1, inner)
	if err != nil {
		return nil, fmt.Errorf("failed to seal seed: %w", err)
	}
	protected, err := c.protector.Protect(outer)
	if err != nil {
		return nil, fmt.Errorf("failed to protect seed: %w", err)
	}
	rec.Seed = base64.StdEncoding.EncodeToString(protected)
	return rec, nil
}

// Decrypt recovers the seed sealed in rec. The returned Secret must be
// destroyed by the caller. A wrong password yields ErrWrongPassword. Missing,
// undecodable or tampered artifacts yield ErrStorageCorrupt.
func (c *Cipher) Decrypt(ctx context.Context, rec *Record, password []byte) (*crypto.Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := rec.validate(); err != nil {
		return nil, err
	}

	key := c.kdf.DeriveKey(password, c.installationSecret)
	if key == nil {
		return nil, crypto.ErrNoKey
	}
	defer crypto.ClearBytes(key)

	var lanes crypto.HashLaneSet
	defer lanes.Destroy()
	for i, encoded := range rec.Lanes {
		sealed, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: lane %d encoding", ErrStorageCorrupt, i+1)
		}
		wrap, err := crypto.ExpandKey(key, nil, laneInfo(i), crypto.KeySize)
		if err != nil {
			return nil, err
		}
		lane, err := openWith(wrap, sealed)
		crypto.ClearBytes(wrap)
		if err != nil {
			// Once lane 1 opens the password is proven; later failures are damage.
			if i == 0 {
				return nil, classify(err, "lane 1")
			}
			return nil, corrupt(err, fmt.Sprintf("lane %d", i+1))
		}
		lanes[i] = lane
	}

	inner1, inner2, err := lanes.InnerKeys()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageCorrupt, err)
	}
	defer crypto.ClearBytes(inner1)
	defer crypto.ClearBytes(inner2)

	protected, err := base64.StdEncoding.DecodeString(rec.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: seed encoding", ErrStorageCorrupt)
	}
	outer, err := c.protector.Unprotect(protected)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageCorrupt, err)
	}
	defer crypto.ClearBytes(outer)

	inner, err := openWith(inner1, outer)
	if err != nil {
		return nil, corrupt(err, "outer layer")
	}
	defer crypto.ClearBytes(inner)

	seed, err := openWith(inner2, inner)
	if err != nil {
		return nil, corrupt(err, "inner layer")
	}
	return crypto.NewSecret(seed), nil
}

// Reencrypt moves rec from oldPassword to newPassword, keeping its
// derivation path.
func (c *Cipher) Reencrypt(ctx context.Context, rec *Record, oldPassword, newPassword []byte) (*Record, error) {
	seed, err := c.Decrypt(ctx, rec, oldPassword)
	if err != nil {
		return nil, err
	}
	defer seed.Destroy()

	var out *Record
	err = seed.Use(func(b []byte) error {
		var err error
		out, err = c.Encrypt(ctx, b, newPassword, rec.DerivationPath)
		return err
	})
	return out, err
}

// classify maps an AEAD failure on the first password-keyed artifact to
// ErrWrongPassword and anything else to ErrStorageCorrupt.
func classify(err error, what string) error {
	if errors.Is(err, crypto.ErrAuthFailed) {
		return ErrWrongPassword
	}
	return corrupt(err, what)
}

func corrupt(err error, what string) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageCorrupt, what, err)
}

func (r *Record) validate() error {
	if r == nil {
		return fmt.Errorf("%w: no record", ErrStorageCorrupt)
	}
	for i, lane := range r.Lanes {
		if lane == "" {
			return fmt.Errorf("%w: lane %d missing", ErrStorageCorrupt, i+1)
		}
	}
	if r.Seed == "" {
		return fmt.Errorf("%w: seed missing", ErrStorageCorrupt)
	}
	return nil
}
