package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/illarion/walletlock/internal/crypto"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	c.sanitize()
	require.NoError(t, c.Validate())
	require.Equal(t, crypto.HashSHA384, c.LaneHash())
	require.Equal(t, crypto.DefaultIters, c.KDFParams().Iterations)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[store]
path = "` + filepath.Join(dir, "w.db") + `"
backend = "LevelDB"

[kdf]
hash = "sha512"
iterations = 1000

[lanes]
hash = "blake2b-256"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "leveldb", c.Store.Backend)
	require.Equal(t, crypto.KDF{Iterations: 1000, Hash: crypto.HashSHA512}, c.KDFParams())
	require.Equal(t, crypto.HashBlake2b256, c.LaneHash())
	// untouched sections keep their defaults
	require.Equal(t, 128, c.Wallet.MnemonicBits)
	require.True(t, c.Protect.Keyring)
}

func TestLoadRejectsUnknownHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[lanes]\nhash = \"crc32\"\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "lanes.hash")
}

func TestValidateArgon2Passes(t *testing.T) {
	c := Default()
	c.KDF.Hash = "argon2id"
	c.sanitize()
	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "argon2id")

	c.KDF.Iterations = 4
	require.NoError(t, c.Validate())
	require.Equal(t, 4, c.KDFParams().Passes())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "absent.toml"))
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "bbolt", c.Store.Backend)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	c := Default()
	c.Store.Path = "/tmp/x.db"
	c.Unlock.Burst = 9
	require.NoError(t, c.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/x.db", loaded.Store.Path)
	require.Equal(t, 9, loaded.Unlock.Burst)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".walletlock"), expandHome("~/.walletlock"))
	require.Equal(t, "/abs", expandHome("/abs"))
	require.False(t, strings.HasPrefix(expandHome("~"), "~"))
}
