package core

import (
	"fmt"
	"time"
)

// EventKind identifies a wallet lifecycle notification.
type EventKind int

const (
	EventCreated EventKind = iota + 1
	EventUnlocked
	EventLocked
	EventDeleted
	EventPasswordChanged
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventUnlocked:
		return "unlocked"
	case EventLocked:
		return "locked"
	case EventDeleted:
		return "deleted"
	case EventPasswordChanged:
		return "password-changed"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is delivered to observers.
type Event struct {
	Kind   EventKind
	Wallet int
	Time   time.Time
}

// Observer receives events.
type Observer func(Event)

// Subscribe registers o and returns a function that removes it. Events are
// delivered through the manager's dispatcher when one is set, otherwise on
// the goroutine that caused them.
func (m *Manager) Subscribe(o Observer) (unsubscribe func()) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = o

	return func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()
		delete(m.observers, id)
	}
}

func (m *Manager) notify(kind EventKind, wallet int) {
	e := Event{Kind: kind, Wallet: wallet, Time: time.Now()}

	m.obsMu.RLock()
	observers := make([]Observer, 0, len(m.observers))
	for _, o := range m.observers {
		observers = append(observers, o)
	}
	m.obsMu.RUnlock()

	deliver := func() {
		for _, o := range observers {
			o(e)
		}
	}
	if m.dispatcher != nil {
		m.dispatcher.Post(deliver)
		return
	}
	deliver()
}
