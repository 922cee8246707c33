package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store layout version written into the meta bucket on first open.
const boltLayoutVersion = "1"

var (
	metaBucket    = []byte("meta")    // layout version, timestamps, installation id
	entriesBucket = []byte("entries") // obfuscated key -> sealed value

	metaVersion      = []byte("version")
	metaCreated      = []byte("created")
	metaModified     = []byte("modified")
	metaInstallation = []byte("installation_id")
)

var errNoBucket = errors.New("bucket missing")

// Storage is the bbolt Substrate. Each write is its own transaction, and
// bbolt fsyncs before Update returns.
type Storage struct {
	db *bolt.DB
}

var _ Substrate = (*Storage)(nil)

func openBolt(path string) (*bolt.DB, error) {
	return bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
}

// Open opens the store file at path, creating it and its buckets if needed.
func Open(path string) (*Storage, error) {
	db, err := openBolt(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	s := &Storage{db: db}
	if err := s.Initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) Close() error { return s.db.Close() }

// Path returns the store file path.
func (s *Storage) Path() string { return s.db.Path() }

// Initialize creates missing buckets and stamps a new file with its layout
// version and creation time.
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return fmt.Errorf("create %s bucket: %w", metaBucket, err)
		}
		if _, err := tx.CreateBucketIfNotExists(entriesBucket); err != nil {
			return fmt.Errorf("create %s bucket: %w", entriesBucket, err)
		}
		if meta.Get(metaVersion) != nil {
			return nil
		}
		if err := meta.Put(metaVersion, []byte(boltLayoutVersion)); err != nil {
			return err
		}
		now, _ := time.Now().MarshalBinary()
		if err := meta.Put(metaCreated, now); err != nil {
			return err
		}
		return meta.Put(metaModified, now)
	})
}

// IsInitialized reports whether the layout version has been written.
func (s *Storage) IsInitialized() (bool, error) {
	var ok bool
	err := s.viewBucket(metaBucket, func(b *bolt.Bucket) error {
		ok = b.Get(metaVersion) != nil
		return nil
	})
	if errors.Is(err, errNoBucket) {
		return false, nil
	}
	return ok, err
}

func (s *Storage) viewBucket(name []byte, fn func(*bolt.Bucket) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(name)
		if b == nil {
			return fmt.Errorf("%w: %s", errNoBucket, name)
		}
		return fn(b)
	})
}

// updateEntries runs fn against the entries bucket and stamps the
// modification time in the same transaction.
func (s *Storage) updateEntries(fn func(*bolt.Bucket) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := fn(tx.Bucket(entriesBucket)); err != nil {
			return err
		}
		now, _ := time.Now().MarshalBinary()
		return tx.Bucket(metaBucket).Put(metaModified, now)
	})
}

func (s *Storage) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.viewBucket(entriesBucket, func(b *bolt.Bucket) error {
		// bbolt memory is only valid inside the transaction; string() copies.
		if v := b.Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	return value, found, err
}

func (s *Storage) Put(key, value string) error {
	return s.updateEntries(func(b *bolt.Bucket) error {
		return b.Put([]byte(key), []byte(value))
	})
}

// Delete removes key. A missing key is not an error.
func (s *Storage) Delete(key string) error {
	return s.updateEntries(func(b *bolt.Bucket) error {
		return b.Delete([]byte(key))
	})
}

func (s *Storage) Has(key string) (bool, error) {
	_, found, err := s.Get(key)
	return found, err
}

// Keys lists entry keys in byte order.
func (s *Storage) Keys() ([]string, error) {
	var keys []string
	err := s.viewBucket(entriesBucket, func(b *bolt.Bucket) error {
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// GetModified returns the time of the last entry write.
func (s *Storage) GetModified() (time.Time, error) {
	var t time.Time
	err := s.viewBucket(metaBucket, func(b *bolt.Bucket) error {
		raw := b.Get(metaModified)
		if raw == nil {
			return fmt.Errorf("%w: no modification time", ErrStorageCorrupt)
		}
		return t.UnmarshalBinary(raw)
	})
	return t, err
}

// GetInstallationID returns ErrNoInstallationID until one is created.
func (s *Storage) GetInstallationID() (string, error) {
	var id string
	err := s.viewBucket(metaBucket, func(b *bolt.Bucket) error {
		raw := b.Get(metaInstallation)
		if raw == nil {
			return ErrNoInstallationID
		}
		id = string(raw)
		return nil
	})
	return id, err
}

// GetOrCreateInstallationID returns the stored id, creating a random one on
// first use. Concurrent callers agree on the winner of the write.
func (s *Storage) GetOrCreateInstallationID() (string, error) {
	if id, err := s.GetInstallationID(); err == nil {
		return id, nil
	} else if !errors.Is(err, ErrNoInstallationID) {
		return "", err
	}

	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("failed to generate installation ID: %w", err)
	}
	id := hex.EncodeToString(raw[:])

	err := s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if existing := meta.Get(metaInstallation); existing != nil {
			id = string(existing)
			return nil
		}
		return meta.Put(metaInstallation, []byte(id))
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Compact rewrites the store into a fresh file, dropping pages freed by
// deleted wallets, and swaps it into place. The original is kept as
// <path>.backup until the swap succeeds.
func (s *Storage) Compact() error {
	path := s.db.Path()
	tmp := path + ".compact"

	if err := s.copyTo(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := s.db.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close store: %w", err)
	}
	swapErr := swapFiles(path, tmp)

	// Reopen whichever file ended up at path so s stays usable.
	db, err := openBolt(path)
	if err != nil {
		return fmt.Errorf("failed to reopen store: %w", err)
	}
	s.db = db
	return swapErr
}

func (s *Storage) copyTo(dstPath string) error {
	dst, err := bolt.Open(dstPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact copy: %w", err)
	}
	err = s.db.View(func(src *bolt.Tx) error {
		return dst.Update(func(out *bolt.Tx) error {
			return src.ForEach(func(name []byte, b *bolt.Bucket) error {
				nb, err := out.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return b.ForEach(nb.Put)
			})
		})
	})
	if closeErr := dst.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to copy store: %w", err)
	}
	return nil
}

func swapFiles(path, replacement string) error {
	backup := path + ".backup"
	if err := os.Rename(path, backup); err != nil {
		_ = os.Remove(replacement)
		return fmt.Errorf("failed to back up store: %w", err)
	}
	if err := os.Rename(replacement, path); err != nil {
		_ = os.Rename(backup, path)
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return os.Remove(backup)
}
