//go:build !linux

package hid

import (
	"errors"

	"github.com/illarion/walletlock/internal/transport"
)

var errUnsupported = errors.New("hid: device access is only implemented on linux")

// Enumerate lists matching devices. Not supported on this platform.
func Enumerate(f Filter) ([]Info, error) {
	return nil, nil
}

// Device is unavailable on this platform.
type Device struct{}

// Open always fails with transport.ErrDeviceNotFound on this platform.
func Open(f Filter) (*Device, error) {
	return nil, transport.ErrDeviceNotFound
}

func OpenPath(info Info) (*Device, error) {
	return nil, errUnsupported
}

func (d *Device) Info() Info                  { return Info{} }
func (d *Device) Write(p []byte) (int, error) { return 0, errUnsupported }
func (d *Device) Read(p []byte) (int, error)  { return 0, errUnsupported }
func (d *Device) Close() error                { return nil }
