package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/walletlock/internal/core"
	"github.com/illarion/walletlock/internal/crypto"
)

// Remove deletes wallet n. Software wallets need their password.
func Remove(ctx context.Context, env *Env, n int) {
	m := env.OpenManager()
	defer m.Close()

	info, err := m.Wallet(n)
	if err != nil {
		HandleError(err)
	}

	var password []byte
	if info.Kind == core.KindSoftware {
		password = GetPasswordOrExit("Enter wallet password: ")
		defer crypto.ClearBytes(password)
	}

	if err := m.DeleteWallet(ctx, n, password); err != nil {
		HandleError(err)
	}

	if err := m.Compact(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
	}

	fmt.Printf("Removed wallet %d (%s)\n", info.Number, info.Name)
}
