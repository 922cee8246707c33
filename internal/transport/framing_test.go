package transport

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 1)
	}
	return b
}

func TestFrameReassembleSizes(t *testing.T) {
	for _, f := range []Framer{LedgerFramer(), {ReportSize: 64, Bare: true}, {ReportSize: 32, Channel: 0x0202, Tag: 0x09}} {
		sizes := []int{0, 1, f.FirstCapacity(), f.FirstCapacity() + 1, f.FirstCapacity() + 3*f.Capacity(), f.FirstCapacity() + 3*f.Capacity() + 11, 1000}
		for _, n := range sizes {
			t.Run(fmt.Sprintf("report%d_bare%v_%d", f.ReportSize, f.Bare, n), func(t *testing.T) {
				msg := payload(n)
				packets, err := f.Frame(msg)
				if err != nil {
					t.Fatalf("Frame failed: %v", err)
				}
				for i, p := range packets {
					if len(p) != f.ReportSize {
						t.Fatalf("packet %d has %d bytes, want %d", i, len(p), f.ReportSize)
					}
				}
				got, err := f.Reassemble(packets)
				if err != nil {
					t.Fatalf("Reassemble failed: %v", err)
				}
				if !bytes.Equal(got, msg) {
					t.Errorf("round trip mismatch for %d bytes", n)
				}
			})
		}
	}
}

func TestEightyByteMessageTwoPackets(t *testing.T) {
	f := LedgerFramer()
	msg := payload(80)

	packets, err := f.Frame(msg)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(packets))
	}
	// Header, sequence and length of packet 0
	want := []byte{0x01, 0x01, 0x05, 0x00, 0x00, 0x00, 80}
	if !bytes.Equal(packets[0][:7], want) {
		t.Errorf("packet 0 header = % x, want % x", packets[0][:7], want)
	}
	if packets[1][3] != 0 || packets[1][4] != 1 {
		t.Errorf("packet 1 sequence = % x", packets[1][3:5])
	}

	got, err := f.Reassemble(packets)
	if err != nil {
		t.Fatalf("Reassemble failed: %v", err)
	}
	if len(got) != 80 {
		t.Fatalf("reassembled %d bytes, want 80", len(got))
	}
	if !bytes.Equal(got, msg) {
		t.Error("reassembled message differs")
	}
}

func TestReassemblerErrors(t *testing.T) {
	f := LedgerFramer()
	packets, err := f.Frame(payload(200))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		packets [][]byte
	}{
		{"short packet", [][]byte{{0x01, 0x01}}},
		{"bad channel", [][]byte{append([]byte{0x02}, packets[0][1:]...)}},
		{"bad tag", [][]byte{append([]byte{0x01, 0x01, 0x06}, packets[0][3:]...)}},
		{"out of order", [][]byte{packets[0], packets[2]}},
		{"missing first", [][]byte{packets[1]}},
		{"incomplete", packets[:2]},
		{"trailing packet", append(append([][]byte{}, packets...), packets[len(packets)-1])},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Reassemble(tt.packets)
			if !errors.Is(err, ErrProtocol) {
				t.Errorf("expected ErrProtocol, got %v", err)
			}
		})
	}
}

func TestFrameTooLong(t *testing.T) {
	if _, err := LedgerFramer().Frame(make([]byte, MaxMessageSize+1)); err == nil {
		t.Error("expected error for oversized message")
	}
	if _, err := (Framer{ReportSize: 6}).Frame([]byte{1}); err == nil {
		t.Error("expected error for tiny report size")
	}
}

func TestAPDUBytes(t *testing.T) {
	b, err := APDU{CLA: 0xE0, INS: 0x02, P1: 0x01, Data: []byte{0xAA, 0xBB}}.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xE0, 0x02, 0x01, 0x00, 0x02, 0xAA, 0xBB}
	if !bytes.Equal(b, want) {
		t.Errorf("got % x, want % x", b, want)
	}

	if _, err := (APDU{Data: make([]byte, 256)}).Bytes(); err == nil {
		t.Error("expected error for oversized data")
	}
}
