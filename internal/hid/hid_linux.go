//go:build linux

package hid

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/illarion/walletlock/internal/transport"
)

// sysRoot and devRoot are replaced in tests.
var (
	sysRoot = "/sys/class/hidraw"
	devRoot = "/dev"
)

// Enumerate lists hidraw devices matching f.
func Enumerate(f Filter) ([]Info, error) {
	entries, err := os.ReadDir(sysRoot)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list hidraw devices: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		fh, err := os.Open(filepath.Join(sysRoot, e.Name(), "device", "uevent"))
		if err != nil {
			continue
		}
		info, err := parseUevent(fh)
		fh.Close()
		if err != nil {
			continue
		}
		info.Path = filepath.Join(devRoot, e.Name())
		if f.match(info) {
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// Device is an open hidraw node.
type Device struct {
	f        *os.File
	info     Info
	reportID byte
	buf      []byte
}

// Open opens the first device matching f. It returns
// transport.ErrDeviceNotFound when nothing matches.
func Open(f Filter) (*Device, error) {
	infos, err := Enumerate(f)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, transport.ErrDeviceNotFound
	}
	return OpenPath(infos[0])
}

// OpenPath opens the device described by info.
func OpenPath(info Info) (*Device, error) {
	fh, err := os.OpenFile(info.Path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, transport.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to open %s: %w", info.Path, err)
	}
	return &Device{f: fh, info: info}, nil
}

// Info returns the device description.
func (d *Device) Info() Info {
	return d.info
}

// Write sends one report, prefixed with the report id byte.
func (d *Device) Write(p []byte) (int, error) {
	d.buf = append(append(d.buf[:0], d.reportID), p...)
	n, err := d.f.Write(d.buf)
	if n > 0 {
		n--
	}
	return n, err
}

// Read reads one report.
func (d *Device) Read(p []byte) (int, error) {
	return d.f.Read(p)
}

func (d *Device) Close() error {
	return d.f.Close()
}
