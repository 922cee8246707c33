package hid

import (
	"strings"
	"testing"
)

func TestParseUevent(t *testing.T) {
	in := "DRIVER=hid-generic\nHID_ID=0003:00002C97:00001015\nHID_NAME=Ledger Nano S\nHID_PHYS=usb-0000:00:14.0-1/input0\n"
	info, err := parseUevent(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parseUevent failed: %v", err)
	}
	if info.Bus != 3 || info.VendorID != LedgerVendorID || info.ProductID != 0x1015 {
		t.Errorf("ids = %04x:%04x:%04x", info.Bus, info.VendorID, info.ProductID)
	}
	if info.Name != "Ledger Nano S" {
		t.Errorf("name = %q", info.Name)
	}
	if info.Interface != 0 {
		t.Errorf("interface = %d", info.Interface)
	}
}

func TestParseUeventErrors(t *testing.T) {
	for _, in := range []string{"HID_NAME=x\n", "HID_ID=0003:2C97\n", "HID_ID=zz:00002C97:00001015\n"} {
		if _, err := parseUevent(strings.NewReader(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestFilterMatch(t *testing.T) {
	ledger0 := Info{VendorID: LedgerVendorID, ProductID: 0x1015, Interface: 0}
	ledger1 := Info{VendorID: LedgerVendorID, ProductID: 0x1015, Interface: 1}
	other := Info{VendorID: 0x046d, Interface: 0}

	f := LedgerFilter()
	if !f.match(ledger0) {
		t.Error("ledger interface 0 should match")
	}
	if f.match(ledger1) {
		t.Error("ledger interface 1 should not match")
	}
	if f.match(other) {
		t.Error("other vendor should not match")
	}
	if !(Filter{Interface: -1}).match(ledger1) {
		t.Error("empty filter should match anything")
	}
}
