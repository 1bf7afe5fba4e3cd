package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bcsync/internal/domain/integration"
)

func TestEventRecorder_RecordsInOrder(t *testing.T) {
	rec := NewEventRecorder(integration.EventTypeSyncCompleted)
	assert.Equal(t, []string{integration.EventTypeSyncCompleted}, rec.EventTypes())

	first := NewTestEvent(integration.EventTypeSyncCompleted, "items")
	require.NoError(t, rec.Handle(context.Background(), first))
	require.NoError(t, rec.Handle(context.Background(), NewTestEvent(integration.EventTypeSyncCompleted, "customers")))

	assert.Same(t, first, rec.Events()[0])
	assert.Equal(t, []string{"items", "customers"}, rec.Keys())
}

func TestEventRecorder_EventsIsACopy(t *testing.T) {
	rec := NewEventRecorder()
	require.NoError(t, rec.Handle(context.Background(), NewTestEvent("t", "items")))

	events := rec.Events()
	events[0] = nil

	assert.NotNil(t, rec.Events()[0])
}

func TestEventRecorder_FailWith(t *testing.T) {
	rec := NewEventRecorder()
	rec.FailWith(assert.AnError)

	err := rec.Handle(context.Background(), NewTestEvent("t", "items"))

	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, rec.Events(), 1)
}

func TestEventRecorder_RequireEvents(t *testing.T) {
	rec := NewEventRecorder()
	go func() {
		for _, key := range []string{"items", "price_lists"} {
			time.Sleep(5 * time.Millisecond)
			_ = rec.Handle(context.Background(), NewTestEvent("t", key))
		}
	}()

	events := rec.RequireEvents(t, 2, time.Second)

	assert.Len(t, events, 2)
	assert.Equal(t, []string{"items", "price_lists"}, rec.Keys())
}

func TestNewTestEvent(t *testing.T) {
	e := NewTestEvent(integration.EventTypeSyncCompleted, "items")

	assert.Equal(t, integration.EventTypeSyncCompleted, e.EventType())
	assert.Equal(t, "items", e.AggregateKey())
	assert.NotEmpty(t, e.EventID())
	assert.False(t, e.OccurredAt().IsZero())
}
