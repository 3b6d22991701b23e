// Package live delivers server-pushed events to interested components. The
// transport is hidden behind a narrow subscribe/unsubscribe surface so the
// wizard and notification logic stay testable without a real channel.
package live

import (
	"sync"
)

// Topics published by the backend.
const (
	TopicSlotsChanged      = "slots.changed"
	TopicAppointmentStatus = "appointments.status"
)

// Event is a lightweight server-pushed notification. Slot events carry at
// least the affected date; appointment events also carry the appointment,
// its owner and the new status.
type Event struct {
	Topic         string `json:"topic"`
	Date          string `json:"date,omitempty"` // YYYY-MM-DD
	AppointmentID int64  `json:"appointment_id,omitempty"`
	CustomerID    int64  `json:"customer_id,omitempty"`
	Status        string `json:"status,omitempty"`
}

// Handler reacts to an event. Handlers run synchronously on the delivering
// goroutine; anything slow belongs behind the handler's own queue.
type Handler func(Event)

// Subscriber is the only dependency wizard-side code has on the transport.
type Subscriber interface {
	// Subscribe registers a handler for a topic and returns its
	// unsubscribe func. Unsubscribing twice is harmless.
	Subscribe(topic string, h Handler) (unsubscribe func())
}

// Bus is an in-process Subscriber used for tests and as the local fan-out
// point behind transport bridges.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
		})
	}
}

// Publish notifies subscribers of the event's topic.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Topic]))
	for _, h := range b.subs[ev.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
