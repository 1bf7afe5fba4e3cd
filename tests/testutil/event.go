package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erp/bcsync/internal/domain/shared"
)

// EventRecorder is a shared.EventHandler that keeps what the bus delivers to it.
type EventRecorder struct {
	types []string

	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

// NewEventRecorder subscribes to eventTypes, or to every type when none are given.
func NewEventRecorder(eventTypes ...string) *EventRecorder {
	return &EventRecorder{types: eventTypes}
}

func (r *EventRecorder) EventTypes() []string { return r.types }

func (r *EventRecorder) Handle(_ context.Context, event shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

// FailWith makes later Handle calls return err after recording the event.
func (r *EventRecorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Events returns a copy of the recorded events in delivery order.
func (r *EventRecorder) Events() []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shared.DomainEvent(nil), r.events...)
}

// Keys returns the aggregate keys (sync families, phone tokens) in delivery order.
func (r *EventRecorder) Keys() []string {
	events := r.Events()
	keys := make([]string, len(events))
	for i, e := range events {
		keys[i] = e.AggregateKey()
	}
	return keys
}

// RequireEvents waits for at least n events and returns them.
// Asynchronous buses deliver from their own goroutines.
func (r *EventRecorder) RequireEvents(t *testing.T, n int, timeout time.Duration) []shared.DomainEvent {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.Events()) >= n }, timeout, 5*time.Millisecond,
		"expected %d events", n)
	return r.Events()
}

// NewTestEvent returns an event of eventType about key.
func NewTestEvent(eventType, key string) shared.DomainEvent {
	e := shared.NewBaseDomainEvent(eventType, key)
	return &e
}
