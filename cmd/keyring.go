package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/walletlock/internal/keyring"
	"github.com/illarion/walletlock/internal/storage"
)

// KeyringStatus shows whether the OS keyring holds the protection key for
// this store
func KeyringStatus(env *Env) {
	if !env.Config.Protect.Keyring {
		fmt.Println("Keyring protection disabled (protect.keyring = false)")
		return
	}

	if _, err := os.Stat(env.Config.Store.Path); err != nil {
		fmt.Println("No wallet store; run 'walletlock init' first")
		return
	}

	sub, err := storage.OpenBackend(env.Config.Store.Backend, env.Config.Store.Path)
	if err != nil {
		HandleError(err)
	}
	defer sub.Close()

	inst, ok := sub.(storage.Installation)
	if !ok {
		fmt.Println("Backend has no installation id")
		return
	}
	id, err := inst.GetOrCreateInstallationID()
	if err != nil {
		HandleError(err)
	}

	if keyring.HasKey(id) {
		fmt.Printf("Protection key present in keyring (installation %s)\n", id)
	} else {
		fmt.Printf("No protection key in keyring (installation %s)\n", id)
		fmt.Println("Seeds sealed with keyring protection cannot be decrypted on this machine")
	}
}
