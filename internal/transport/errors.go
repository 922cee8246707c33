package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound is returned when no matching device is connected.
	ErrDeviceNotFound = errors.New("hardware device not found")

	// ErrProtocol is returned for malformed, short, or out-of-sequence
	// packets. The stream cannot be trusted afterwards.
	ErrProtocol = errors.New("hardware protocol error")

	// ErrSessionFailed is returned by requests on a session whose link
	// previously failed mid-request.
	ErrSessionFailed = errors.New("transport session failed")
)

// DeviceRejectedError reports a non-success status word from the device,
// for example when the user declines on-device confirmation.
type DeviceRejectedError struct {
	Code uint16
}

func (e *DeviceRejectedError) Error() string {
	if msg, ok := statusMessages[e.Code]; ok {
		return fmt.Sprintf("device rejected request: %s (0x%04x)", msg, e.Code)
	}
	return fmt.Sprintf("device rejected request: status 0x%04x", e.Code)
}

var statusMessages = map[uint16]string{
	0x6985: "denied by user",
	0x6a80: "invalid data",
	0x6b00: "incorrect parameter",
	0x6d00: "instruction not supported",
	0x6e00: "app not open",
	0x6faa: "device locked",
	0x5515: "device locked",
}

// IsRejected reports whether err is a DeviceRejectedError, returning its code.
func IsRejected(err error) (uint16, bool) {
	var rejected *DeviceRejectedError
	if errors.As(err, &rejected) {
		return rejected.Code, true
	}
	return 0, false
}
