// Package config loads walletlock settings from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/naoina/toml"

	"github.com/illarion/walletlock/internal/crypto"
	"github.com/illarion/walletlock/internal/storage"
)

// EnvConfig names the environment variable that overrides the config path.
const EnvConfig = "WALLETLOCK_CONFIG"

type Store struct {
	Path    string `toml:"path"`
	Backend string `toml:"backend"` // bbolt, leveldb
}

type KDF struct {
	Hash       string `toml:"hash"`
	Iterations int    `toml:"iterations"`
}

type Lanes struct {
	Hash string `toml:"hash"`
}

type Protect struct {
	Keyring bool `toml:"keyring"` // wrap secrets with a key held in the OS keyring
}

type Log struct {
	Path       string `toml:"path"` // file prefix; empty disables the log file
	Level      string `toml:"level"`
	MaxAgeHour int    `toml:"max_age_hour"`
	RotateHour int    `toml:"rotate_hour"`
}

type Unlock struct {
	AttemptsPerMinute float64 `toml:"attempts_per_minute"`
	Burst             int     `toml:"burst"`
}

type Hardware struct {
	VendorID          int `toml:"vendor_id"`
	Interface         int `toml:"interface"`
	ReportSize        int `toml:"report_size"`
	AcquireTimeoutSec int `toml:"acquire_timeout_sec"`
}

type Wallet struct {
	DerivationPath string `toml:"derivation_path"`
	MnemonicBits   int    `toml:"mnemonic_bits"`
}

type Config struct {
	Store    Store    `toml:"store"`
	KDF      KDF      `toml:"kdf"`
	Lanes    Lanes    `toml:"lanes"`
	Protect  Protect  `toml:"protect"`
	Log      Log      `toml:"log"`
	Unlock   Unlock   `toml:"unlock"`
	Hardware Hardware `toml:"hardware"`
	Wallet   Wallet   `toml:"wallet"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: Store{
			Path:    "~/.walletlock/wallets.db",
			Backend: storage.BackendBolt,
		},
		KDF: KDF{
			Hash:       string(crypto.HashSHA256),
			Iterations: crypto.DefaultIters,
		},
		Lanes: Lanes{
			Hash: string(crypto.HashSHA384),
		},
		Protect: Protect{
			Keyring: true,
		},
		Log: Log{
			Path:       "~/.walletlock/logs/walletlock",
			Level:      "info",
			MaxAgeHour: 24 * 7,
			RotateHour: 24,
		},
		Unlock: Unlock{
			AttemptsPerMinute: 5,
			Burst:             3,
		},
		Hardware: Hardware{
			VendorID:          0x2c97,
			Interface:         0,
			ReportSize:        64,
			AcquireTimeoutSec: 30,
		},
		Wallet: Wallet{
			DerivationPath: "m/44'/60'/0'/0/0",
			MnemonicBits:   128,
		},
	}
}

// DefaultPath returns the config file location used when none is given.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return expandHome("~/.walletlock/config.toml")
}

// Load reads path over the defaults. An empty path means DefaultPath; a
// missing default file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	c := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	c.sanitize()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) sanitize() {
	c.Store.Path = expandHome(c.Store.Path)
	c.Log.Path = expandHome(c.Log.Path)
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
}

// Validate checks names and ranges.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return errors.New("store.path is empty")
	}
	switch c.Store.Backend {
	case storage.BackendBolt, storage.BackendLevelDB, storage.BackendMemory:
	default:
		return fmt.Errorf("store.backend: %w: %s", storage.ErrUnknownBackend, c.Store.Backend)
	}
	if _, err := crypto.ParseHashStrategy(c.KDF.Hash); err != nil {
		return fmt.Errorf("kdf.hash: %w", err)
	}
	if _, err := crypto.ParseHashStrategy(c.Lanes.Hash); err != nil {
		return fmt.Errorf("lanes.hash: %w", err)
	}
	if c.KDF.Iterations < 1 {
		return errors.New("kdf.iterations must be positive")
	}
	if crypto.HashStrategy(strings.ToLower(strings.TrimSpace(c.KDF.Hash))) == crypto.HashArgon2id && c.KDF.Iterations > crypto.MaxArgon2Passes {
		return fmt.Errorf("kdf.iterations must be 1..%d for argon2id, got %d", crypto.MaxArgon2Passes, c.KDF.Iterations)
	}
	switch c.Wallet.MnemonicBits {
	case 128, 160, 192, 224, 256:
	default:
		return fmt.Errorf("wallet.mnemonic_bits must be one of 128..256 in steps of 32, got %d", c.Wallet.MnemonicBits)
	}
	if c.Hardware.ReportSize < 8 {
		return fmt.Errorf("hardware.report_size too small: %d", c.Hardware.ReportSize)
	}
	return nil
}

// KDFParams returns the parsed key derivation settings.
func (c *Config) KDFParams() crypto.KDF {
	h, _ := crypto.ParseHashStrategy(c.KDF.Hash)
	return crypto.KDF{Iterations: c.KDF.Iterations, Hash: h}
}

// LaneHash returns the parsed lane hash strategy.
func (c *Config) LaneHash() crypto.HashStrategy {
	h, _ := crypto.ParseHashStrategy(c.Lanes.Hash)
	return h
}

// Save writes c to path as TOML, creating the directory.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(*c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString("# walletlock configuration\n\n")
	buf.Write(data)
	return os.WriteFile(path, buf.Bytes(), 0600)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
