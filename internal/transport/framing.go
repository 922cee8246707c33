package transport

import (
	"encoding/binary"
	"fmt"
)

// Ledger HID link defaults.
const (
	DefaultReportSize = 64
	LedgerChannel     = 0x0101
	LedgerTag         = 0x05
)

// MaxMessageSize is the largest message a 2-byte length prefix can describe.
const MaxMessageSize = 0xFFFF

// Framer splits messages into fixed-size link packets and back.
//
// Packet 0:        [channel:2][tag:1][seq:2][length:2][payload...]
// Packet 1..n:     [channel:2][tag:1][seq:2][payload...]
//
// Every packet is zero-padded to ReportSize. With Bare set the channel and
// tag are omitted and packets start at the sequence index.
type Framer struct {
	ReportSize int
	Channel    uint16
	Tag        byte
	Bare       bool
}

// LedgerFramer returns the framing used by Ledger devices over HID.
func LedgerFramer() Framer {
	return Framer{
		ReportSize: DefaultReportSize,
		Channel:    LedgerChannel,
		Tag:        LedgerTag,
	}
}

func (f Framer) headerLen() int {
	if f.Bare {
		return 2
	}
	return 5
}

// FirstCapacity is the number of payload bytes packet 0 carries.
func (f Framer) FirstCapacity() int {
	return f.ReportSize - f.headerLen() - 2
}

// Capacity is the number of payload bytes a continuation packet carries.
func (f Framer) Capacity() int {
	return f.ReportSize - f.headerLen()
}

func (f Framer) validate() error {
	if f.FirstCapacity() < 1 {
		return fmt.Errorf("report size %d too small for header", f.ReportSize)
	}
	return nil
}

func (f Framer) putHeader(p []byte, seq int) {
	if !f.Bare {
		binary.BigEndian.PutUint16(p, f.Channel)
		p[2] = f.Tag
		p = p[3:]
	}
	binary.BigEndian.PutUint16(p, uint16(seq))
}

// Frame splits msg into packets. An empty message still yields one packet
// carrying a zero length.
func (f Framer) Frame(msg []byte) ([][]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if len(msg) > MaxMessageSize {
		return nil, fmt.Errorf("message too long: %d bytes", len(msg))
	}

	var packets [][]byte
	for seq := 0; seq == 0 || len(msg) > 0; seq++ {
		p := make([]byte, f.ReportSize)
		f.putHeader(p, seq)
		off := f.headerLen()
		if seq == 0 {
			binary.BigEndian.PutUint16(p[off:], uint16(len(msg)))
			off += 2
		}
		n := copy(p[off:], msg)
		msg = msg[n:]
		packets = append(packets, p)
	}
	return packets, nil
}

// Reassembler rebuilds one message from packets fed in order.
type Reassembler struct {
	framer    Framer
	seq       int
	remaining int
	msg       []byte
	started   bool
	done      bool
}

// NewReassembler returns a Reassembler for packets produced by f.
func (f Framer) NewReassembler() *Reassembler {
	return &Reassembler{framer: f}
}

// Feed consumes one packet and reports whether the message is complete.
// Padding after the last payload byte is discarded.
func (r *Reassembler) Feed(packet []byte) (bool, error) {
	if r.done {
		return true, fmt.Errorf("%w: packet after end of message", ErrProtocol)
	}

	f := r.framer
	hl := f.headerLen()
	if len(packet) < hl {
		return false, fmt.Errorf("%w: short packet (%d bytes)", ErrProtocol, len(packet))
	}
	if !f.Bare {
		if binary.BigEndian.Uint16(packet) != f.Channel || packet[2] != f.Tag {
			return false, fmt.Errorf("%w: invalid reply header", ErrProtocol)
		}
	}
	seq := int(binary.BigEndian.Uint16(packet[hl-2:]))
	if seq != r.seq {
		return false, fmt.Errorf("%w: sequence %d, expected %d", ErrProtocol, seq, r.seq)
	}
	payload := packet[hl:]

	if !r.started {
		if len(payload) < 2 {
			return false, fmt.Errorf("%w: first packet lacks length", ErrProtocol)
		}
		r.remaining = int(binary.BigEndian.Uint16(payload))
		r.msg = make([]byte, 0, r.remaining)
		payload = payload[2:]
		r.started = true
	} else if len(payload) == 0 {
		return false, fmt.Errorf("%w: empty continuation packet", ErrProtocol)
	}

	n := min(r.remaining, len(payload))
	r.msg = append(r.msg, payload[:n]...)
	r.remaining -= n
	r.seq++
	r.done = r.remaining == 0
	return r.done, nil
}

// Message returns the reassembled message once Feed has reported completion.
func (r *Reassembler) Message() ([]byte, error) {
	if !r.done {
		return nil, fmt.Errorf("%w: message incomplete, %d bytes remaining", ErrProtocol, r.remaining)
	}
	return r.msg, nil
}

// Reassemble feeds packets in order and returns the message. Trailing
// packets after completion are a protocol error.
func (f Framer) Reassemble(packets [][]byte) ([]byte, error) {
	r := f.NewReassembler()
	for _, p := range packets {
		if _, err := r.Feed(p); err != nil {
			return nil, err
		}
	}
	return r.Message()
}
