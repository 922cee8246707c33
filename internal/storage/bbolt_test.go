package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenAndInitialize(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.walletlock")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	initialized, err := db.IsInitialized()
	if err != nil {
		t.Fatalf("Failed to check initialization: %v", err)
	}
	if !initialized {
		t.Error("Database should be initialized")
	}

	// Initialize is idempotent
	if err := db.Initialize(); err != nil {
		t.Fatalf("Second initialize failed: %v", err)
	}
}

func TestPrefsOperations(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.walletlock"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	before, err := db.GetModified()
	if err != nil {
		t.Fatalf("Failed to get modified: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	if err := db.Put("a1b2", "ciphertext"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	value, found, err := db.Get("a1b2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || value != "ciphertext" {
		t.Errorf("Get: got %q (found=%v), want ciphertext", value, found)
	}

	after, err := db.GetModified()
	if err != nil {
		t.Fatalf("Failed to get modified: %v", err)
	}
	if !after.After(before) {
		t.Error("Put should bump the modified timestamp")
	}

	keys, err := db.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "a1b2" {
		t.Errorf("Keys: got %v", keys)
	}

	if err := db.Delete("a1b2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	has, err := db.Has("a1b2")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Error("Key should be gone after delete")
	}

	// Deleting a missing key is fine
	if err := db.Delete("missing"); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
}

func TestInstallationID(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.walletlock"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := db.GetInstallationID(); err != ErrNoInstallationID {
		t.Errorf("Expected ErrNoInstallationID, got %v", err)
	}

	id, err := db.GetOrCreateInstallationID()
	if err != nil {
		t.Fatalf("GetOrCreateInstallationID failed: %v", err)
	}
	if len(id) != 32 {
		t.Errorf("Installation ID should be 32 hex chars, got %q", id)
	}

	again, err := db.GetOrCreateInstallationID()
	if err != nil {
		t.Fatalf("GetOrCreateInstallationID failed: %v", err)
	}
	if again != id {
		t.Errorf("Installation ID changed: %s != %s", again, id)
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.walletlock")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := db.Put("entry", "data"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	id, err := db.GetOrCreateInstallationID()
	if err != nil {
		t.Fatalf("GetOrCreateInstallationID failed: %v", err)
	}

	db.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db2.Close()

	value, found, err := db2.Get("entry")
	if err != nil || !found {
		t.Fatalf("Entry not persisted: found=%v err=%v", found, err)
	}
	if value != "data" {
		t.Error("Entry data not persisted correctly")
	}

	id2, err := db2.GetInstallationID()
	if err != nil {
		t.Fatalf("GetInstallationID failed: %v", err)
	}
	if id2 != id {
		t.Error("Installation ID not persisted")
	}
}

func TestCompact(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.walletlock"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	for _, k := range []string{"a", "b", "c"} {
		if err := db.Put(k, k+"-value"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := db.Delete("b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if err := db.Compact(); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	keys, err := db.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Expected 2 keys after compaction, got %v", keys)
	}
}

func TestLevelDBSubstrate(t *testing.T) {
	dir := t.TempDir()
	sub, err := OpenBackend(BackendLevelDB, filepath.Join(dir, "ldb"))
	if err != nil {
		t.Fatalf("OpenBackend failed: %v", err)
	}
	defer sub.Close()

	if err := sub.Put("k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	value, found, err := sub.Get("k")
	if err != nil || !found || value != "v" {
		t.Fatalf("Get: %q %v %v", value, found, err)
	}
	keys, err := sub.Keys()
	if err != nil || len(keys) != 1 || keys[0] != "k" {
		t.Fatalf("Keys: %v %v", keys, err)
	}

	inst, ok := sub.(Installation)
	if !ok {
		t.Fatal("leveldb substrate should expose an installation id")
	}
	id1, _ := inst.GetOrCreateInstallationID()
	id2, _ := inst.GetOrCreateInstallationID()
	if id1 == "" || id1 != id2 {
		t.Errorf("installation id unstable: %q %q", id1, id2)
	}

	if err := sub.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if has, _ := sub.Has("k"); has {
		t.Error("key should be deleted")
	}
}

func TestOpenBackendUnknown(t *testing.T) {
	if _, err := OpenBackend("redis", filepath.Join(t.TempDir(), "x")); err == nil {
		t.Error("expected error for unknown backend")
	}
}
