package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// Reset destroys every wallet in the store after confirmation
func Reset(_ context.Context, env *Env, force bool) {
	m := env.OpenManager()
	defer m.Close()

	wallets, err := m.Wallets()
	if err != nil {
		HandleError(err)
	}

	if !force {
		fmt.Printf("This permanently destroys %d wallet(s) in %s.\n", len(wallets), env.Config.Store.Path)
		fmt.Print("Type 'reset' to continue: ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(answer) != "reset" {
			fmt.Println("Aborted")
			return
		}
	}

	if err := m.Reset(); err != nil {
		HandleError(err)
	}
	if err := m.Compact(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
	}

	fmt.Println("Store reset; all wallets removed")
}
