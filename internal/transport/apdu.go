package transport

import (
	"encoding/binary"
	"fmt"
)

// StatusOK is the status word of a successful reply.
const StatusOK uint16 = 0x9000

// MaxAPDUData is the largest data field a short APDU can carry.
const MaxAPDUData = 255

// APDU is an application command sent to the device.
//
//	CLA | INS | P1 | P2 | Lc | Data
type APDU struct {
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
	Data []byte
}

// Bytes serializes the command.
func (a APDU) Bytes() ([]byte, error) {
	if len(a.Data) > MaxAPDUData {
		return nil, fmt.Errorf("apdu data too long: %d bytes", len(a.Data))
	}
	out := make([]byte, 0, 5+len(a.Data))
	out = append(out, a.CLA, a.INS, a.P1, a.P2, byte(len(a.Data)))
	return append(out, a.Data...), nil
}

// SplitReply separates a reply into its data and trailing status word.
func SplitReply(reply []byte) ([]byte, uint16, error) {
	if len(reply) < 2 {
		return nil, 0, fmt.Errorf("%w: reply of %d bytes lacks status word", ErrProtocol, len(reply))
	}
	n := len(reply) - 2
	return reply[:n], binary.BigEndian.Uint16(reply[n:]), nil
}

// Request is a typed command that can be serialized to an APDU.
type Request interface {
	APDU() APDU
}

// Response decodes the data part of a successful reply.
type Response interface {
	Decode(data []byte) error
}

// RawResponse keeps the reply data as-is.
type RawResponse struct {
	Data []byte
}

func (r *RawResponse) Decode(data []byte) error {
	r.Data = append(r.Data[:0], data...)
	return nil
}
