package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/illarion/walletlock/internal/core"
	"github.com/illarion/walletlock/internal/git"
)

// Status shows the state of the wallet store. No password required.
func Status(ctx context.Context, env *Env) {
	if _, err := os.Stat(env.Config.Store.Path); err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("No wallet store at %s\n", env.Config.Store.Path)
			fmt.Println("Run 'walletlock init' to create one")
			return
		}
		HandleError(err)
	}

	m := env.OpenManager()
	defer m.Close()

	status, err := m.Status(ctx)
	if err != nil {
		HandleError(err)
	}
	printStatus(status)
}

func printStatus(s *core.StatusInfo) {
	fmt.Printf("Store:      %s (%s)\n", s.StorePath, s.Backend)
	if !s.Modified.IsZero() {
		fmt.Printf("Modified:   %s\n", s.Modified.Local().Format(time.RFC3339))
	}
	fmt.Printf("Wallets:    %d\n", s.Wallets)
	fmt.Println()
	fmt.Println("Encryption:")
	fmt.Printf("   Algorithm: %s\n", s.Algorithm)
	fmt.Printf("   KDF:       %s\n", s.KDF)
	fmt.Printf("   Lanes:     %s\n", s.LaneHash)
	if s.Protected {
		fmt.Println("   Keyring:   seed layer bound to OS keyring")
	} else {
		fmt.Println("   Keyring:   disabled")
	}
	if s.Installation != "" {
		fmt.Printf("   Install:   %s\n", s.Installation)
	}
	fmt.Print(git.FormatStoreStatus(s.GitStatus))
}
