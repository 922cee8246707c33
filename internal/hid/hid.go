// Package hid discovers hardware wallets on the host and opens them as
// transport devices.
package hid

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LedgerVendorID is the USB vendor id of Ledger devices.
const LedgerVendorID = 0x2c97

// Info describes one HID interface of a connected device.
type Info struct {
	Path      string // device node, e.g. /dev/hidraw3
	Bus       uint16
	VendorID  uint16
	ProductID uint16
	Name      string
	Interface int // USB interface number, -1 when unknown
}

func (i Info) String() string {
	return fmt.Sprintf("%s %04x:%04x %q if%d", i.Path, i.VendorID, i.ProductID, i.Name, i.Interface)
}

// Filter selects devices during enumeration. Zero fields match anything;
// Interface < 0 matches any interface.
type Filter struct {
	VendorID  uint16
	ProductID uint16
	Interface int
}

// LedgerFilter matches the generic HID interface of Ledger devices.
func LedgerFilter() Filter {
	return Filter{VendorID: LedgerVendorID, Interface: 0}
}

func (f Filter) match(info Info) bool {
	if f.VendorID != 0 && info.VendorID != f.VendorID {
		return false
	}
	if f.ProductID != 0 && info.ProductID != f.ProductID {
		return false
	}
	if f.Interface >= 0 && info.Interface >= 0 && info.Interface != f.Interface {
		return false
	}
	return true
}

// parseUevent reads a hidraw parent uevent file:
//
//	HID_ID=0003:00002C97:00001015
//	HID_NAME=Ledger Nano S
//	HID_PHYS=usb-0000:00:14.0-1/input0
func parseUevent(r io.Reader) (Info, error) {
	info := Info{Interface: -1}
	var haveID bool

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "HID_ID":
			parts := strings.Split(value, ":")
			if len(parts) != 3 {
				return info, fmt.Errorf("malformed HID_ID %q", value)
			}
			var ids [3]uint64
			for i, p := range parts {
				v, err := strconv.ParseUint(p, 16, 32)
				if err != nil {
					return info, fmt.Errorf("malformed HID_ID %q: %w", value, err)
				}
				ids[i] = v
			}
			info.Bus, info.VendorID, info.ProductID = uint16(ids[0]), uint16(ids[1]), uint16(ids[2])
			haveID = true
		case "HID_NAME":
			info.Name = value
		case "HID_PHYS":
			if i := strings.LastIndex(value, "/input"); i >= 0 {
				if n, err := strconv.Atoi(value[i+len("/input"):]); err == nil {
					info.Interface = n
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return info, err
	}
	if !haveID {
		return info, fmt.Errorf("uevent lacks HID_ID")
	}
	return info, nil
}
