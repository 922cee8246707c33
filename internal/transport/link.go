package transport

import (
	"fmt"
	"io"
)

// Device is a raw report channel to one hardware device. Each Write sends
// one report and each Read returns at most one report.
type Device interface {
	io.ReadWriter
	Close() error
}

// Link moves whole messages over a Device using a Framer. It does no locking;
// Session serializes access.
type Link struct {
	dev     Device
	framer  Framer
	metrics *Metrics
}

// NewLink returns a link over dev.
func NewLink(dev Device, framer Framer) *Link {
	return &Link{dev: dev, framer: framer}
}

// Write frames msg and sends each packet as its own write.
func (l *Link) Write(msg []byte) error {
	packets, err := l.framer.Frame(msg)
	if err != nil {
		return err
	}
	for i, p := range packets {
		n, err := l.dev.Write(p)
		if err != nil {
			return fmt.Errorf("write packet %d: %w", i, err)
		}
		if n != len(p) {
			return fmt.Errorf("write packet %d: %w", i, io.ErrShortWrite)
		}
		l.metrics.packetWritten()
	}
	return nil
}

// Read reads packets until one full message is reassembled. A zero-length
// read before the message completes is a protocol error.
func (l *Link) Read() ([]byte, error) {
	r := l.framer.NewReassembler()
	buf := make([]byte, l.framer.ReportSize)
	for {
		n, err := l.dev.Read(buf)
		if err != nil && n == 0 {
			return nil, fmt.Errorf("read packet: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: zero-length read mid-message", ErrProtocol)
		}
		l.metrics.packetRead()

		done, err := r.Feed(buf[:n])
		if err != nil {
			return nil, err
		}
		if done {
			return r.Message()
		}
	}
}
