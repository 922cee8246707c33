package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/illarion/walletlock/internal/core"
	"github.com/illarion/walletlock/internal/crypto"
)

// Unlock checks the password of wallet n by decrypting its seed. The seed
// is zeroed before the command returns.
func Unlock(ctx context.Context, env *Env, n int) {
	dispatcher := core.NewDispatcher()
	m := env.OpenManager(core.WithDispatcher(dispatcher))
	defer m.Close()

	unsubscribe := m.Subscribe(func(e core.Event) {
		env.Log.Debug("Wallet event", zap.Stringer("event", e.Kind), zap.Int("wallet", e.Wallet))
	})
	defer unsubscribe()

	password := GetPasswordOrExit("Enter wallet password: ")
	defer crypto.ClearBytes(password)

	var result core.UnlockResult
	m.UnlockAsync(ctx, n, password, func(r core.UnlockResult) {
		result = r
		dispatcher.Close()
	})
	if err := dispatcher.Run(ctx); err != nil {
		HandleError(err)
	}
	if result.Err != nil {
		HandleError(result.Err)
	}
	defer result.Wallet.Close()

	size, err := seedSize(result.Wallet)
	if err != nil {
		result.Wallet.Close()
		HandleError(err)
	}

	info := result.Wallet.Info()
	fmt.Printf("✓ Wallet %d (%s) unlocked\n", info.Number, info.Name)
	fmt.Printf("  seed: %d bytes, derivation path %s\n", size, info.DerivationPath)
}

// seedSize reports the length of the unlocked seed without copying it.
func seedSize(w *core.UnlockedWallet) (int, error) {
	var size int
	err := w.UseSeed(func(seed []byte) error {
		size = len(seed)
		return nil
	})
	return size, err
}
