package core

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tyler-smith/go-bip39"
	gokeyring "github.com/zalando/go-keyring"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/illarion/walletlock/internal/config"
	"github.com/illarion/walletlock/internal/crypto"
	"github.com/illarion/walletlock/internal/keyring"
	"github.com/illarion/walletlock/internal/securestore"
	"github.com/illarion/walletlock/internal/seedcipher"
	"github.com/illarion/walletlock/internal/storage"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func fastKDF() crypto.KDF {
	return crypto.KDF{Iterations: 1000, Hash: crypto.HashSHA256}
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	store := securestore.New(storage.NewMemory(), keyring.NopProtector{})
	m, err := NewManager(store, append([]Option{WithKDF(fastKDF())}, opts...)...)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func seedOf(t *testing.T, w *UnlockedWallet) []byte {
	t.Helper()
	var out []byte
	if err := w.UseSeed(func(seed []byte) error {
		out = append([]byte(nil), seed...)
		return nil
	}); err != nil {
		t.Fatalf("UseSeed failed: %v", err)
	}
	return out
}

func TestCreateAndUnlock(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	info, err := m.CreateWallet(ctx, "main", testMnemonic, []byte("correct horse"))
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if info.Number != 0 || info.Kind != KindSoftware || info.Name != "main" {
		t.Errorf("Unexpected wallet info: %+v", info)
	}

	w, err := m.Unlock(ctx, 0, []byte("correct horse"))
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	want := bip39.NewSeed(testMnemonic, "")
	if got := seedOf(t, w); !bytes.Equal(got, want) {
		t.Error("Unlocked seed does not match the mnemonic seed")
	}

	w.Close()
	w.Close()
	if err := w.UseSeed(func([]byte) error { return nil }); !errors.Is(err, crypto.ErrSecretDestroyed) {
		t.Errorf("Expected ErrSecretDestroyed after Close, got %v", err)
	}
}

func TestUnlockWrongPassword(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if _, err := m.CreateWallet(ctx, "main", testMnemonic, []byte("correct horse")); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if _, err := m.Unlock(ctx, 0, []byte("wrong horse")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Expected ErrWrongPassword, got %v", err)
	}
	if _, err := m.Unlock(ctx, 0, nil); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("Expected ErrPasswordRequired, got %v", err)
	}
	if _, err := m.Unlock(ctx, 7, []byte("correct horse")); !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("Expected ErrWalletNotFound, got %v", err)
	}
}

func TestCreateWalletValidation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if _, err := m.CreateWallet(ctx, "x", "abandon abandon abandon", []byte("pw")); !errors.Is(err, ErrInvalidMnemonic) {
		t.Errorf("Expected ErrInvalidMnemonic, got %v", err)
	}
	if _, err := m.CreateWallet(ctx, "x", testMnemonic, nil); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("Expected ErrPasswordRequired, got %v", err)
	}

	wallets, err := m.Wallets()
	if err != nil {
		t.Fatalf("Wallets failed: %v", err)
	}
	if len(wallets) != 0 {
		t.Errorf("Failed creations should not leave wallets, got %v", wallets)
	}
}

func TestWalletNumbering(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	mnemonic, err := NewMnemonic(256)
	if err != nil {
		t.Fatalf("NewMnemonic failed: %v", err)
	}
	if len(bytes.Fields([]byte(mnemonic))) != 24 {
		t.Errorf("256-bit mnemonic should have 24 words: %q", mnemonic)
	}

	for i, name := range []string{"first", "second"} {
		info, err := m.CreateWallet(ctx, name, mnemonic, []byte("pw"))
		if err != nil {
			t.Fatalf("CreateWallet %s failed: %v", name, err)
		}
		if info.Number != i {
			t.Errorf("Wallet %s: got number %d, want %d", name, info.Number, i)
		}
	}

	wallets, err := m.Wallets()
	if err != nil {
		t.Fatalf("Wallets failed: %v", err)
	}
	if len(wallets) != 2 || wallets[0].Name != "first" || wallets[1].Name != "second" {
		t.Errorf("Unexpected wallets: %+v", wallets)
	}

	// Each wallet has its own lanes under its number
	has, err := m.store.Has(seedcipher.LaneKey(1, 4))
	if err != nil || !has {
		t.Errorf("Lane 4 of wallet 1 should be stored: %v %v", has, err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if _, err := m.CreateWallet(ctx, "main", testMnemonic, []byte("old")); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if err := m.ChangePassword(ctx, 0, []byte("bad"), []byte("new")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Expected ErrWrongPassword, got %v", err)
	}
	if err := m.ChangePassword(ctx, 0, []byte("old"), []byte("new")); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := m.Unlock(ctx, 0, []byte("old")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Old password should no longer work, got %v", err)
	}
	w, err := m.Unlock(ctx, 0, []byte("new"))
	if err != nil {
		t.Fatalf("Unlock with new password failed: %v", err)
	}
	defer w.Close()
	if !bytes.Equal(seedOf(t, w), bip39.NewSeed(testMnemonic, "")) {
		t.Error("Seed changed across password change")
	}
}

func TestDeleteWallet(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if _, err := m.CreateWallet(ctx, "main", testMnemonic, []byte("pw")); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if err := m.DeleteWallet(ctx, 0, []byte("nope")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Expected ErrWrongPassword, got %v", err)
	}
	if err := m.DeleteWallet(ctx, 0, []byte("pw")); err != nil {
		t.Fatalf("DeleteWallet failed: %v", err)
	}

	if _, err := m.Wallet(0); !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("Expected ErrWalletNotFound, got %v", err)
	}
	for _, key := range []string{seedcipher.SeedKey(0), seedcipher.LaneKey(0, 1), seedcipher.DerivationKey(0)} {
		if has, _ := m.store.Has(key); has {
			t.Errorf("%s should be removed", key)
		}
	}

	// Numbers are not reused
	info, err := m.CreateWallet(ctx, "again", testMnemonic, []byte("pw"))
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if info.Number != 1 {
		t.Errorf("Expected wallet number 1, got %d", info.Number)
	}
}

func TestDeleteWalletEmitsOnlyDeleted(t *testing.T) {
	ctx := context.Background()
	obsCore, logs := observer.New(zapcore.InfoLevel)
	m := newTestManager(t, WithLogger(zap.New(obsCore)))

	if _, err := m.CreateWallet(ctx, "main", testMnemonic, []byte("pw")); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	var events []EventKind
	m.Subscribe(func(e Event) { events = append(events, e.Kind) })

	if err := m.DeleteWallet(ctx, 0, []byte("pw")); err != nil {
		t.Fatalf("DeleteWallet failed: %v", err)
	}
	if len(events) != 1 || events[0] != EventDeleted {
		t.Errorf("Expected only a deleted event, got %v", events)
	}
	if n := logs.FilterMessage("Wallet unlocked").Len(); n != 0 {
		t.Errorf("Delete should not log an unlock, got %d", n)
	}
}

func TestUnlockThrottled(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, WithUnlockLimit(1, 2))

	if _, err := m.CreateWallet(ctx, "main", testMnemonic, []byte("pw")); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := m.Unlock(ctx, 0, []byte("bad")); !errors.Is(err, ErrWrongPassword) {
			t.Fatalf("Attempt %d: expected ErrWrongPassword, got %v", i, err)
		}
	}
	if _, err := m.Unlock(ctx, 0, []byte("pw")); !errors.Is(err, ErrTooManyAttempts) {
		t.Errorf("Expected ErrTooManyAttempts, got %v", err)
	}
}

func TestSuccessfulUnlockNotThrottled(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, WithUnlockLimit(1, 1))

	if _, err := m.CreateWallet(ctx, "main", testMnemonic, []byte("pw")); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		w, err := m.Unlock(ctx, 0, []byte("pw"))
		if err != nil {
			t.Fatalf("Unlock %d failed: %v", i, err)
		}
		w.Close()
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "wallets.db")
	cfg.KDF.Iterations = 1000
	cfg.Log.Path = ""
	return cfg
}

func TestInitOpenWithKeyring(t *testing.T) {
	gokeyring.MockInit()
	ctx := context.Background()
	cfg := testConfig(t)

	if _, err := Open(cfg); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}

	m, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, err := m.CreateWallet(ctx, "main", testMnemonic, []byte("pw")); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	status, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Wallets != 1 || !status.Protected || status.Backend != storage.BackendBolt {
		t.Errorf("Unexpected status: %+v", status)
	}
	if status.Modified.IsZero() || status.Installation == "" {
		t.Errorf("Status should carry bbolt metadata: %+v", status)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := Init(cfg); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}

	m2, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer m2.Close()

	w, err := m2.Unlock(ctx, 0, []byte("pw"))
	if err != nil {
		t.Fatalf("Unlock after reopen failed: %v", err)
	}
	defer w.Close()
	if !bytes.Equal(seedOf(t, w), bip39.NewSeed(testMnemonic, "")) {
		t.Error("Seed mismatch after reopen")
	}

	if err := m2.Compact(); err != nil {
		t.Errorf("Compact failed: %v", err)
	}
}

func TestOpenLevelDBBackend(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.Backend = storage.BackendLevelDB
	cfg.Protect.Keyring = false

	m, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer m.Close()

	if _, err := m.CreateWallet(ctx, "main", testMnemonic, []byte("pw")); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	w, err := m.Unlock(ctx, 0, []byte("pw"))
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	w.Close()
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if _, err := m.CreateWallet(ctx, "main", testMnemonic, []byte("pw")); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	oldKey, err := m.store.ObfuscatedKey(walletCountKey)
	if err != nil {
		t.Fatalf("ObfuscatedKey failed: %v", err)
	}

	if err := m.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	wallets, err := m.Wallets()
	if err != nil {
		t.Fatalf("Wallets failed: %v", err)
	}
	if len(wallets) != 0 {
		t.Errorf("Reset should drop all wallets, got %v", wallets)
	}
	newKey, _ := m.store.ObfuscatedKey(walletCountKey)
	if newKey == oldKey {
		t.Error("Reset should create a new root secret")
	}

	info, err := m.CreateWallet(ctx, "fresh", testMnemonic, []byte("pw"))
	if err != nil {
		t.Fatalf("CreateWallet after reset failed: %v", err)
	}
	if info.Number != 0 {
		t.Errorf("Numbering should restart at 0, got %d", info.Number)
	}
	w, err := m.Unlock(ctx, 0, []byte("pw"))
	if err != nil {
		t.Fatalf("Unlock after reset failed: %v", err)
	}
	w.Close()
}

func TestResetWithCorruptCount(t *testing.T) {
	obsCore, logs := observer.New(zapcore.WarnLevel)
	m := newTestManager(t, WithLogger(zap.New(obsCore)))

	if err := m.store.SetString(walletCountKey, "garbage"); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	entries := logs.FilterMessage("Wallet count unreadable, resetting anyway").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one warning about the count, got %d", len(entries))
	}
	if msg, ok := entries[0].ContextMap()["error"].(string); !ok || msg == "" {
		t.Errorf("Warning should carry the error, got %v", entries[0].ContextMap())
	}
	if wallets, err := m.Wallets(); err != nil || len(wallets) != 0 {
		t.Errorf("Wallets after reset: %v, %v", wallets, err)
	}
}
