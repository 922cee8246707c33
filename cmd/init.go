package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/illarion/walletlock/internal/core"
)

// Init creates the wallet store and, if missing, the config file
func Init(_ context.Context, env *Env) {
	m, err := core.Init(env.Config, core.WithLogger(env.Log))
	if err != nil {
		HandleError(err)
	}
	defer m.Close()

	if _, err := os.Stat(env.ConfigPath); errors.Is(err, os.ErrNotExist) {
		if err := env.Config.Save(env.ConfigPath); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write config: %s\n", err)
		} else {
			fmt.Printf("Wrote %s\n", env.ConfigPath)
		}
	}

	fmt.Printf("✓ Initialized wallet store at %s\n", env.Config.Store.Path)
}
