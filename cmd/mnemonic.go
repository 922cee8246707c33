package cmd

import (
	"fmt"

	"github.com/illarion/walletlock/internal/core"
)

// Mnemonic prints a new BIP-39 mnemonic without storing it
func Mnemonic(env *Env, bits int) {
	if bits == 0 {
		bits = env.Config.Wallet.MnemonicBits
	}
	mnemonic, err := core.NewMnemonic(bits)
	if err != nil {
		HandleError(err)
	}
	fmt.Println(mnemonic)
}
