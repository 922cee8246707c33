package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/walletlock/internal/core"
	"github.com/illarion/walletlock/internal/crypto"
)

// Create seals a wallet seed under a new password. With generate a fresh
// mnemonic is created and printed once; otherwise it is read from stdin.
func Create(ctx context.Context, env *Env, name string, generate bool) {
	m := env.OpenManager()
	defer m.Close()

	var mnemonic string
	var err error
	if generate {
		mnemonic, err = core.NewMnemonic(env.Config.Wallet.MnemonicBits)
		if err != nil {
			HandleError(err)
		}
		fmt.Println("Write down this mnemonic. It will not be shown again:")
		fmt.Println()
		fmt.Printf("  %s\n\n", mnemonic)
	} else {
		mnemonic, err = core.ReadMnemonic("Enter mnemonic: ", os.Stdin)
		if err != nil {
			HandleError(err)
		}
	}

	password := GetNewPassword("Enter wallet password: ")
	defer crypto.ClearBytes(password)

	info, err := m.CreateWallet(ctx, name, mnemonic, password)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Created wallet %d (%s)\n", info.Number, info.Name)
}
