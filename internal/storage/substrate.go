package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound         = errors.New("entry not found")
	ErrStorageCorrupt   = errors.New("stored data is corrupt")
	ErrNoInstallationID = errors.New("installation id not found")
	ErrUnknownBackend   = errors.New("unknown storage backend")
)

// Backend names accepted by OpenBackend.
const (
	BackendBolt    = "bbolt"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

// Substrate is the string key/value store the secure store persists into.
// Every Put and Delete must be durable when it returns.
type Substrate interface {
	Get(key string) (value string, found bool, err error)
	Put(key, value string) error
	Delete(key string) error
	Has(key string) (bool, error)
	Keys() ([]string, error)
	Close() error
}

// Installation is implemented by substrates that keep a stable
// per-installation identifier next to the data.
type Installation interface {
	GetOrCreateInstallationID() (string, error)
}

// Compactor is implemented by substrates that can reclaim free space.
type Compactor interface {
	Compact() error
}

// OpenBackend opens the named substrate at path, creating parent
// directories as needed.
func OpenBackend(backend, path string) (Substrate, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == BackendMemory {
		return NewMemory(), nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	switch backend {
	case "", BackendBolt:
		return Open(path)
	case BackendLevelDB:
		return OpenLevelDB(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}
