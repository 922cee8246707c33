package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/illarion/walletlock/internal/core"
	"github.com/illarion/walletlock/internal/crypto"
	"github.com/illarion/walletlock/internal/keyring"
	"github.com/illarion/walletlock/internal/securestore"
	"github.com/illarion/walletlock/internal/storage"
)

func TestSeedSize(t *testing.T) {
	ctx := context.Background()
	store := securestore.New(storage.NewMemory(), keyring.NopProtector{})
	m, err := core.NewManager(store, core.WithKDF(crypto.KDF{Iterations: 1000, Hash: crypto.HashSHA256}))
	require.NoError(t, err)
	defer m.Close()

	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	_, err = m.CreateWallet(ctx, "main", mnemonic, []byte("pw"))
	require.NoError(t, err)

	w, err := m.Unlock(ctx, 0, []byte("pw"))
	require.NoError(t, err)

	size, err := seedSize(w)
	require.NoError(t, err)
	require.Equal(t, 64, size)

	w.Close()
	_, err = seedSize(w)
	require.ErrorIs(t, err, crypto.ErrSecretDestroyed)
}
