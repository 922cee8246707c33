package transport

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

// echoDevice answers every complete message with the message itself
// followed by a status word. It records overlapping requests.
type echoDevice struct {
	framer Framer
	status uint16
	delay  time.Duration

	mu          sync.Mutex
	reasm       *Reassembler
	out         [][]byte
	inFlight    bool
	interleaved bool
	writes      int
	closed      bool
}

func newEchoDevice(f Framer) *echoDevice {
	return &echoDevice{framer: f, status: StatusOK}
}

func (d *echoDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reasm == nil {
		if d.inFlight {
			d.interleaved = true
		}
		d.inFlight = true
		d.reasm = d.framer.NewReassembler()
	}
	d.writes++
	done, err := d.reasm.Feed(p)
	if err != nil {
		return 0, err
	}
	if done {
		msg, _ := d.reasm.Message()
		d.reasm = nil
		reply := append(append([]byte(nil), msg...), 0, 0)
		binary.BigEndian.PutUint16(reply[len(reply)-2:], d.status)
		d.out, _ = d.framer.Frame(reply)
	}
	return len(p), nil
}

func (d *echoDevice) Read(p []byte) (int, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.out) == 0 {
		return 0, nil
	}
	n := copy(p, d.out[0])
	d.out = d.out[1:]
	if len(d.out) == 0 {
		d.inFlight = false
	}
	return n, nil
}

func (d *echoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// scriptedDevice returns canned packets and fails writes on demand.
type scriptedDevice struct {
	reads    [][]byte
	writeErr error
	written  [][]byte
}

var errUnplugged = errors.New("device unplugged")

func (d *scriptedDevice) Write(p []byte) (int, error) {
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	d.written = append(d.written, append([]byte(nil), p...))
	return len(p), nil
}

func (d *scriptedDevice) Read(p []byte) (int, error) {
	if len(d.reads) == 0 {
		return 0, nil
	}
	n := copy(p, d.reads[0])
	d.reads = d.reads[1:]
	return n, nil
}

func (d *scriptedDevice) Close() error { return nil }
