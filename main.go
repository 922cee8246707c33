package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/illarion/walletlock/cmd"
)

var (
	configFile string
	debug      bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "walletlock",
		Short: "Password-sealed wallet seeds and hardware wallet signing",
		Long: `walletlock keeps cryptocurrency wallet seeds encrypted at rest under a
password and an installation secret, and talks to Ledger hardware wallets
for addresses and transaction signatures.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default ~/.walletlock/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log debug output to stderr")

	rootCmd.AddCommand(
		initCmd(),
		createCmd(),
		unlockCmd(),
		passwdCmd(),
		rmCmd(),
		lsCmd(),
		statusCmd(),
		compactCmd(),
		resetCmd(),
		mnemonicCmd(),
		ledgerCmd(),
		keyringCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// run sets up config and logging around fn.
func run(fn func(ctx context.Context, env *cmd.Env)) func(*cobra.Command, []string) {
	return func(c *cobra.Command, _ []string) {
		env := cmd.Setup(configFile, debug)
		defer env.Close()
		fn(c.Context(), env)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the wallet store",
		Long: `Creates the wallet store and its root secret, and writes the config file
if it does not exist yet. No password is set here; each wallet has its own.`,
		Args: cobra.NoArgs,
		Run:  run(cmd.Init),
	}
}

func createCmd() *cobra.Command {
	var generate bool
	c := &cobra.Command{
		Use:   "create <name>",
		Short: "Seal a wallet seed under a password",
		Long: `Reads a BIP-39 mnemonic from stdin (or generates one with --generate),
derives its seed and stores it encrypted under a new password.
WALLETLOCK_PASSWORD is used instead of prompting when set.`,
		Example: `  walletlock create savings --generate
  echo "$MNEMONIC" | walletlock create imported`,
		Args: cobra.ExactArgs(1),
		Run: func(c *cobra.Command, args []string) {
			run(func(ctx context.Context, env *cmd.Env) {
				cmd.Create(ctx, env, args[0], generate)
			})(c, args)
		},
	}
	c.Flags().BoolVarP(&generate, "generate", "g", false, "Generate a new mnemonic")
	return c
}

func unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <wallet>",
		Short: "Decrypt a wallet seed to verify its password",
		Args:  cobra.ExactArgs(1),
		Run: func(c *cobra.Command, args []string) {
			run(func(ctx context.Context, env *cmd.Env) {
				cmd.Unlock(ctx, env, cmd.ParseWalletNumber(args[0]))
			})(c, args)
		},
	}
}

func passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <wallet>",
		Short: "Change a wallet password",
		Args:  cobra.ExactArgs(1),
		Run: func(c *cobra.Command, args []string) {
			run(func(ctx context.Context, env *cmd.Env) {
				cmd.Passwd(ctx, env, cmd.ParseWalletNumber(args[0]))
			})(c, args)
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <wallet>",
		Short: "Delete a wallet",
		Long:  "Deletes a wallet. Software wallets require their password.",
		Args:  cobra.ExactArgs(1),
		Run: func(c *cobra.Command, args []string) {
			run(func(ctx context.Context, env *cmd.Env) {
				cmd.Remove(ctx, env, cmd.ParseWalletNumber(args[0]))
			})(c, args)
		},
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List wallets (no password required)",
		Args:  cobra.NoArgs,
		Run: run(func(_ context.Context, env *cmd.Env) {
			cmd.Ls(env)
		}),
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store status (no password required)",
		Args:  cobra.NoArgs,
		Run:   run(cmd.Status),
	}
}

func compactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Compact the store to reclaim disk space",
		Args:  cobra.NoArgs,
		Run:   run(cmd.Compact),
	}
}

func resetCmd() *cobra.Command {
	var force bool
	c := &cobra.Command{
		Use:   "reset",
		Short: "Destroy the root secret and every wallet",
		Long: `Deletes the store's root secret together with every entry. Wallets cannot
be recovered afterwards except from their mnemonics.`,
		Args: cobra.NoArgs,
		Run: run(func(ctx context.Context, env *cmd.Env) {
			cmd.Reset(ctx, env, force)
		}),
	}
	c.Flags().BoolVar(&force, "force", false, "Reset without confirmation")
	return c
}

func mnemonicCmd() *cobra.Command {
	var bits int
	c := &cobra.Command{
		Use:   "mnemonic",
		Short: "Print a new BIP-39 mnemonic without storing it",
		Args:  cobra.NoArgs,
		Run: run(func(_ context.Context, env *cmd.Env) {
			cmd.Mnemonic(env, bits)
		}),
	}
	c.Flags().IntVar(&bits, "bits", 0, "Entropy bits: 128, 160, 192, 224 or 256 (default from config)")
	return c
}

func ledgerCmd() *cobra.Command {
	var path string
	c := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger hardware wallet commands",
	}
	c.PersistentFlags().StringVarP(&path, "path", "p", "", "BIP-32 derivation path (default from config)")

	c.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the Ethereum app version",
		Args:  cobra.NoArgs,
		Run:   run(cmd.LedgerInfo),
	})

	var display bool
	address := &cobra.Command{
		Use:   "address",
		Short: "Show the address at a derivation path",
		Args:  cobra.NoArgs,
		Run: run(func(ctx context.Context, env *cmd.Env) {
			cmd.LedgerAddress(ctx, env, path, display)
		}),
	}
	address.Flags().BoolVarP(&display, "display", "d", false, "Confirm the address on the device")
	c.AddCommand(address)

	c.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Record a device account as a wallet",
		Args:  cobra.ExactArgs(1),
		Run: func(cc *cobra.Command, args []string) {
			run(func(ctx context.Context, env *cmd.Env) {
				cmd.LedgerAdd(ctx, env, args[0], path)
			})(cc, args)
		},
	})

	var file string
	sign := &cobra.Command{
		Use:   "sign [payload-hex]",
		Short: "Sign an RLP transaction payload on the device",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cc *cobra.Command, args []string) {
			var payload string
			if len(args) == 1 {
				payload = args[0]
			}
			run(func(ctx context.Context, env *cmd.Env) {
				cmd.LedgerSign(ctx, env, path, payload, file)
			})(cc, args)
		},
	}
	sign.Flags().StringVarP(&file, "file", "f", "", "Read the hex payload from a file")
	c.AddCommand(sign)

	return c
}

func keyringCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "keyring",
		Short: "OS keyring protection",
	}
	c.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether the protection key is in the OS keyring",
		Args:  cobra.NoArgs,
		Run: run(func(_ context.Context, env *cmd.Env) {
			cmd.KeyringStatus(env)
		}),
	})
	return c
}
