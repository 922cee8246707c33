package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	levelPrefsPrefix  = []byte("p/")
	levelConfigPrefix = []byte("c/")
)

// LevelDB is a goleveldb-backed Substrate. Writes are synced.
type LevelDB struct {
	db *leveldb.DB
	mu sync.Mutex // serializes GetOrCreateInstallationID
}

var _ Substrate = (*LevelDB)(nil)

// OpenLevelDB opens or creates a LevelDB store at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &LevelDB{db: db}, nil
}

var syncWrite = &opt.WriteOptions{Sync: true}

func prefsKey(key string) []byte {
	return append(append([]byte{}, levelPrefsPrefix...), key...)
}

// Get returns the value stored under key.
func (l *LevelDB) Get(key string) (string, bool, error) {
	data, err := l.db.Get(prefsKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Put stores value under key.
func (l *LevelDB) Put(key, value string) error {
	return l.db.Put(prefsKey(key), []byte(value), syncWrite)
}

// Delete removes key.
func (l *LevelDB) Delete(key string) error {
	return l.db.Delete(prefsKey(key), syncWrite)
}

// Has reports whether key is present.
func (l *LevelDB) Has(key string) (bool, error) {
	return l.db.Has(prefsKey(key), nil)
}

// Keys returns every stored key.
func (l *LevelDB) Keys() ([]string, error) {
	iter := l.db.NewIterator(util.BytesPrefix(levelPrefsPrefix), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()[len(levelPrefsPrefix):]))
	}
	return keys, iter.Error()
}

// GetOrCreateInstallationID retrieves the existing installation ID or generates a new one
func (l *LevelDB) GetOrCreateInstallationID() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := append(append([]byte{}, levelConfigPrefix...), "installation_id"...)
	data, err := l.db.Get(key, nil)
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, leveldb.ErrNotFound) {
		return "", err
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate installation ID: %w", err)
	}
	id := hex.EncodeToString(b)
	if err := l.db.Put(key, []byte(id), syncWrite); err != nil {
		return "", err
	}
	return id, nil
}

// Compact compacts the whole key range.
func (l *LevelDB) Compact() error {
	return l.db.CompactRange(util.Range{})
}

// Close closes the database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}
