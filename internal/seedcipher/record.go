package seedcipher

import (
	"errors"
	"fmt"

	"github.com/illarion/walletlock/internal/crypto"
	"github.com/illarion/walletlock/internal/storage"
)

// Logical key names; each is suffixed with the wallet number.
const (
	laneKeyFmt       = "wallet_hash_lvl_%d_%d"
	seedKeyFmt       = "wallet_data_%d"
	derivationKeyFmt = "wallet_derivation_%d"
)

// KV is the subset of the secure store used to persist records.
type KV interface {
	GetString(logicalKey string) (string, error)
	SetString(logicalKey, value string) error
	Delete(logicalKey string) error
}

// LaneKey returns the logical key of lane i (1..4) of wallet n.
func LaneKey(n, i int) string { return fmt.Sprintf(laneKeyFmt, n, i) }

// SeedKey returns the logical key of the seed ciphertext of wallet n.
func SeedKey(n int) string { return fmt.Sprintf(seedKeyFmt, n) }

// DerivationKey returns the logical key of the derivation path of wallet n.
func DerivationKey(n int) string { return fmt.Sprintf(derivationKeyFmt, n) }

// Save writes rec as separate logical keys for wallet n.
func (r *Record) Save(kv KV, n int) error {
	for i, lane := range r.Lanes {
		if err := kv.SetString(LaneKey(n, i+1), lane); err != nil {
			return fmt.Errorf("failed to store lane %d: %w", i+1, err)
		}
	}
	if err := kv.SetString(SeedKey(n), r.Seed); err != nil {
		return fmt.Errorf("failed to store seed: %w", err)
	}
	if err := kv.SetString(DerivationKey(n), r.DerivationPath); err != nil {
		return fmt.Errorf("failed to store derivation path: %w", err)
	}
	return nil
}

// Load reads the record of wallet n. Missing lanes or seed are left empty
// so Decrypt reports them as corrupt.
func Load(kv KV, n int) (*Record, error) {
	rec := &Record{}
	for i := 0; i < crypto.LaneCount; i++ {
		lane, err := getOptional(kv, LaneKey(n, i+1))
		if err != nil {
			return nil, err
		}
		rec.Lanes[i] = lane
	}
	var err error
	if rec.Seed, err = getOptional(kv, SeedKey(n)); err != nil {
		return nil, err
	}
	if rec.DerivationPath, err = getOptional(kv, DerivationKey(n)); err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove deletes every key of wallet n.
func Remove(kv KV, n int) error {
	keys := []string{SeedKey(n), DerivationKey(n)}
	for i := 1; i <= crypto.LaneCount; i++ {
		keys = append(keys, LaneKey(n, i))
	}
	for _, k := range keys {
		if err := kv.Delete(k); err != nil {
			return fmt.Errorf("failed to delete %s: %w", k, err)
		}
	}
	return nil
}

func getOptional(kv KV, key string) (string, error) {
	v, err := kv.GetString(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}
