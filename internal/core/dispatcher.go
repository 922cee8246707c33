package core

import (
	"context"
	"sync"
)

type dispatchItem struct {
	run  func()
	drop func()
}

// Dispatcher is a single-consumer queue. Work posted from any goroutine
// runs serially on the goroutine that calls Run, in posting order.
type Dispatcher struct {
	mu      sync.Mutex
	pending []dispatchItem
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewDispatcher returns an open dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues fn. It reports false, dropping fn, once the dispatcher is closed.
func (d *Dispatcher) Post(fn func()) bool {
	return d.PostOr(fn, nil)
}

// PostOr queues fn like Post. If fn is accepted but never run because Run
// stopped on its context, drop is called instead. When PostOr reports false
// neither is called and the caller owns the cleanup.
func (d *Dispatcher) PostOr(fn, drop func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.pending = append(d.pending, dispatchItem{run: fn, drop: drop})
	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Run delivers queued work until ctx is done or Close is called. Work
// already queued when Close is called is still delivered. When ctx ends
// first the dispatcher is closed and undelivered work is dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			d.abandon()
			return err
		}
		select {
		case <-ctx.Done():
			d.abandon()
			return ctx.Err()
		case <-d.wake:
			d.drain()
		case <-d.done:
			d.drain()
			return nil
		}
	}
}

// RunOnce delivers whatever is queued and returns the number of items run.
func (d *Dispatcher) RunOnce() int {
	return d.drain()
}

func (d *Dispatcher) take() []dispatchItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	batch := d.pending
	d.pending = nil
	return batch
}

func (d *Dispatcher) drain() int {
	batch := d.take()
	for _, it := range batch {
		it.run()
	}
	return len(batch)
}

func (d *Dispatcher) abandon() {
	d.Close()
	for _, it := range d.take() {
		if it.drop != nil {
			it.drop()
		}
	}
}

// Close stops accepting work and makes Run return.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.done)
}
