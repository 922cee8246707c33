package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/illarion/walletlock/internal/config"
	"github.com/illarion/walletlock/internal/core"
	"github.com/illarion/walletlock/internal/logging"
	"github.com/illarion/walletlock/internal/transport"
)

// Env carries what every command needs: configuration and a logger.
type Env struct {
	ConfigPath string
	Config     *config.Config
	Log        *zap.Logger
	Debug      bool

	closeLog func() error
}

// Setup loads configuration and starts logging, exiting on failure.
func Setup(configPath string, debug bool) *Env {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	log, closeLog, err := logging.New(cfg.Log, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	return &Env{ConfigPath: configPath, Config: cfg, Log: log, Debug: debug, closeLog: closeLog}
}

// Close flushes the logger.
func (e *Env) Close() {
	if e.closeLog != nil {
		_ = e.closeLog()
	}
}

// OpenManager opens the configured store or exits.
func (e *Env) OpenManager(opts ...core.Option) *core.Manager {
	m, err := core.Open(e.Config, append([]core.Option{core.WithLogger(e.Log)}, opts...)...)
	if err != nil {
		HandleError(err)
	}
	return m
}

// GetPassword retrieves password from environment or prompts user
// The caller is responsible for calling crypto.ClearBytes on the returned password
func GetPassword(prompt string) ([]byte, error) {
	password := core.GetPasswordFromEnv()
	if password != nil {
		return password, nil
	}

	password, err := core.ReadPassword(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return password, nil
}

// GetPasswordOrExit is like GetPassword but exits on error
func GetPasswordOrExit(prompt string) []byte {
	password, err := GetPassword(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}

// GetNewPassword retrieves a password for a new secret.
// Checks environment variable first, then prompts with confirmation
func GetNewPassword(prompt string) []byte {
	if password := core.GetPasswordFromEnv(); password != nil {
		return password
	}
	password, err := core.ReadPasswordConfirm(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}

// ParseWalletNumber parses a wallet number argument or exits.
func ParseWalletNumber(arg string) int {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid wallet number %q\n", arg)
		os.Exit(1)
	}
	return n
}

// HandleError handles common errors consistently
func HandleError(err error) {
	var rejected *transport.DeviceRejectedError
	switch {
	case errors.Is(err, core.ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "Error: walletlock not initialized\n")
		fmt.Fprintf(os.Stderr, "Run 'walletlock init' first\n")
	case errors.Is(err, core.ErrAlreadyExists):
		fmt.Fprintf(os.Stderr, "Error: wallet store already exists\n")
		fmt.Fprintf(os.Stderr, "Use 'walletlock status' to see current state\n")
	case errors.Is(err, core.ErrWrongPassword):
		fmt.Fprintf(os.Stderr, "Error: wrong password, try again\n")
	case errors.Is(err, core.ErrTooManyAttempts):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	case errors.Is(err, core.ErrPasswordRequired), errors.Is(err, core.ErrNoKey):
		fmt.Fprintf(os.Stderr, "Error: password required\n")
	case errors.Is(err, core.ErrWalletNotFound):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Use 'walletlock ls' to list wallets\n")
	case errors.Is(err, core.ErrInvalidMnemonic):
		fmt.Fprintf(os.Stderr, "Error: invalid mnemonic, check the words and their order\n")
	case errors.Is(err, core.ErrDeviceNotFound):
		fmt.Fprintf(os.Stderr, "Error: no hardware wallet found\n")
		fmt.Fprintf(os.Stderr, "Connect and unlock the device, open the Ethereum app, then retry\n")
	case errors.As(err, &rejected):
		fmt.Fprintf(os.Stderr, "Error: %s\n", rejected)
	case errors.Is(err, core.ErrProtocol):
		fmt.Fprintf(os.Stderr, "Error: hardware wallet communication failed: %s\n", err)
		fmt.Fprintf(os.Stderr, "Reconnect the device and retry\n")
	case errors.Is(err, core.ErrStorageCorrupt):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "The stored wallet cannot be read; re-import it from its mnemonic\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

