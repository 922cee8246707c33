package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State is the request state of a Session.
type State int32

const (
	StateIdle State = iota
	StateWriting
	StateReading
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWriting:
		return "writing"
	case StateReading:
		return "reading"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Session owns one device and allows a single request in flight at a time.
// Callers queue on a capacity-1 semaphore; a request that has started
// writing always runs to completion or failure, regardless of its context.
type Session struct {
	link    *Link
	sem     chan struct{}
	state   atomic.Int32
	timeout time.Duration
	metrics *Metrics
	log     *zap.Logger

	mu      sync.Mutex
	failure error
	closed  bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithFramer overrides the Ledger HID framing.
func WithFramer(f Framer) SessionOption {
	return func(s *Session) { s.link.framer = f }
}

// WithMetrics records request metrics.
func WithMetrics(m *Metrics) SessionOption {
	return func(s *Session) {
		s.metrics = m
		s.link.metrics = m
	}
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// WithAcquireTimeout bounds how long a request waits for the session.
// It does not apply once the request has started.
func WithAcquireTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.timeout = d }
}

// NewSession wraps dev. The session takes ownership of dev.
func NewSession(dev Device, opts ...SessionOption) *Session {
	s := &Session{
		link: NewLink(dev, LedgerFramer()),
		sem:  make(chan struct{}, 1),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current request state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Err returns the failure that put the session into StateFailed, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *Session) acquire(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() {
	<-s.sem
}

// Exchange writes msg and reads one reply message. Only the wait for the
// session honours ctx.
func (s *Session) Exchange(ctx context.Context, msg []byte) ([]byte, error) {
	start := time.Now()
	if err := s.acquire(ctx); err != nil {
		s.metrics.observe(outcomeCanceled, start)
		return nil, err
	}
	defer s.release()
	return s.exchangeLocked(msg, start)
}

func (s *Session) exchangeLocked(msg []byte, start time.Time) ([]byte, error) {
	s.mu.Lock()
	failure, closed := s.failure, s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: session closed", ErrSessionFailed)
	}
	if failure != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionFailed, failure)
	}

	s.state.Store(int32(StateWriting))
	s.log.Debug("Sending message to device", zap.Int("bytes", len(msg)))
	if err := s.link.Write(msg); err != nil {
		s.fail(err, start)
		return nil, err
	}

	s.state.Store(int32(StateReading))
	reply, err := s.link.Read()
	if err != nil {
		s.fail(err, start)
		return nil, err
	}
	s.log.Debug("Received reply from device", zap.Int("bytes", len(reply)))

	s.state.Store(int32(StateIdle))
	return reply, nil
}

func (s *Session) fail(err error, start time.Time) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
	s.state.Store(int32(StateFailed))

	outcome := outcomeIO
	if errors.Is(err, ErrProtocol) {
		outcome = outcomeProtocol
	}
	s.metrics.observe(outcome, start)
	s.log.Warn("Device request failed", zap.Error(err))
}

// SendRequest sends req, checks the reply status word and decodes the data
// into resp. A non-success status yields *DeviceRejectedError.
func (s *Session) SendRequest(ctx context.Context, req Request, resp Response) error {
	start := time.Now()
	if err := s.acquire(ctx); err != nil {
		s.metrics.observe(outcomeCanceled, start)
		return err
	}
	defer s.release()
	return s.sendLocked(req, resp, start)
}

func (s *Session) sendLocked(req Request, resp Response, start time.Time) error {
	msg, err := req.APDU().Bytes()
	if err != nil {
		return err
	}

	reply, err := s.exchangeLocked(msg, start)
	if err != nil {
		return err
	}

	data, status, err := SplitReply(reply)
	if err != nil {
		s.metrics.observe(outcomeProtocol, start)
		return err
	}
	if status != StatusOK {
		s.metrics.observe(outcomeRejected, start)
		return &DeviceRejectedError{Code: status}
	}
	if resp != nil {
		if err := resp.Decode(data); err != nil {
			s.metrics.observe(outcomeProtocol, start)
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}
	}
	s.metrics.observe(outcomeOK, start)
	return nil
}

// Sender sends requests on a session that is already held.
type Sender interface {
	Send(req Request, resp Response) error
}

type heldSession struct{ s *Session }

func (h heldSession) Send(req Request, resp Response) error {
	return h.s.sendLocked(req, resp, time.Now())
}

// Sequence holds the session for the duration of fn, so that multi-APDU
// commands are not interleaved with other callers. Only the wait for the
// session honours ctx.
func (s *Session) Sequence(ctx context.Context, fn func(Sender) error) error {
	start := time.Now()
	if err := s.acquire(ctx); err != nil {
		s.metrics.observe(outcomeCanceled, start)
		return err
	}
	defer s.release()
	return fn(heldSession{s})
}

// Close waits for any in-flight request and closes the device.
func (s *Session) Close() error {
	s.sem <- struct{}{}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.link.dev.Close()
}
