package core

import (
	"sync"
	"time"

	"github.com/illarion/walletlock/internal/crypto"
)

// WalletKind tells software wallets (seed held locally) from hardware ones.
type WalletKind string

const (
	KindSoftware WalletKind = "software"
	KindHardware WalletKind = "hardware"
)

// WalletInfo is the non-secret description of a wallet, readable without
// a password.
type WalletInfo struct {
	Number         int        `json:"number"`
	Name           string     `json:"name"`
	Kind           WalletKind `json:"kind"`
	Address        string     `json:"address,omitempty"`
	DerivationPath string     `json:"derivation_path"`
	Created        time.Time  `json:"created"`
}

// UnlockedWallet is the only way to reach a decrypted seed. It is returned
// by Unlock and must be closed, which zeroes the seed.
type UnlockedWallet struct {
	info WalletInfo
	seed *crypto.Secret

	once    sync.Once
	onClose func()
}

// Info returns the wallet description.
func (w *UnlockedWallet) Info() WalletInfo {
	return w.info
}

// UseSeed calls fn with the seed bytes. fn must not retain the slice.
// After Close it returns crypto.ErrSecretDestroyed.
func (w *UnlockedWallet) UseSeed(fn func(seed []byte) error) error {
	return w.seed.Use(fn)
}

// Close zeroes the seed. Safe to call more than once.
func (w *UnlockedWallet) Close() {
	w.once.Do(func() {
		w.seed.Destroy()
		if w.onClose != nil {
			w.onClose()
		}
	})
}
