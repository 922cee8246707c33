package keyring

import (
	"bytes"
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestKeyRoundTrip(t *testing.T) {
	keyring.MockInit()

	if HasKey("inst-1") {
		t.Fatal("no key should exist yet")
	}
	if _, err := GetKey("inst-1"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	key := bytes.Repeat([]byte{0x42}, 32)
	if err := SaveKey("inst-1", key); err != nil {
		t.Fatalf("SaveKey failed: %v", err)
	}
	got, err := GetKey("inst-1")
	if err != nil {
		t.Fatalf("GetKey failed: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Error("key mismatch")
	}

	if err := DeleteKey("inst-1"); err != nil {
		t.Fatalf("DeleteKey failed: %v", err)
	}
	if HasKey("inst-1") {
		t.Error("key should be deleted")
	}
	// deleting twice is not an error
	if err := DeleteKey("inst-1"); err != nil {
		t.Errorf("second DeleteKey failed: %v", err)
	}
}

func TestKeyringProtector(t *testing.T) {
	keyring.MockInit()

	p := NewKeyringProtector("inst-2")
	protected, err := p.Protect([]byte("seed material"))
	if err != nil {
		t.Fatalf("Protect failed: %v", err)
	}
	if bytes.Contains(protected, []byte("seed material")) {
		t.Error("protected output contains plaintext")
	}

	// A fresh protector for the same installation loads the key from the keyring
	p2 := NewKeyringProtector("inst-2")
	plain, err := p2.Unprotect(protected)
	if err != nil {
		t.Fatalf("Unprotect failed: %v", err)
	}
	if string(plain) != "seed material" {
		t.Errorf("got %q", plain)
	}

	other := NewKeyringProtector("inst-3")
	if _, err := other.Unprotect(protected); !errors.Is(err, ErrUnprotect) {
		t.Errorf("expected ErrUnprotect for another installation, got %v", err)
	}
}

func TestKeyringProtectorForget(t *testing.T) {
	keyring.MockInit()

	p := NewKeyringProtector("inst-4")
	protected, err := p.Protect([]byte("x"))
	if err != nil {
		t.Fatalf("Protect failed: %v", err)
	}
	p.Forget()

	plain, err := p.Unprotect(protected)
	if err != nil {
		t.Fatalf("Unprotect after Forget failed: %v", err)
	}
	if string(plain) != "x" {
		t.Errorf("got %q", plain)
	}
}

func TestNopProtector(t *testing.T) {
	var p Protector = NopProtector{}
	in := []byte("data")
	out, err := p.Protect(in)
	if err != nil {
		t.Fatal(err)
	}
	back, err := p.Unprotect(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, in) {
		t.Error("nop protector should pass data through")
	}
}
