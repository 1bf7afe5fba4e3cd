package event

import (
	"context"
	"fmt"

	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// InMemoryEventBus dispatches events synchronously to the handlers registered for their type.
// A failing or panicking handler never affects the publisher or the other handlers.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	known    map[string]bool
	logger   *zap.Logger
}

// NewInMemoryEventBus creates a bus that accepts the given event types.
// Publishing any other type is logged and dropped.
func NewInMemoryEventBus(logger *zap.Logger, knownTypes ...string) *InMemoryEventBus {
	known := make(map[string]bool, len(knownTypes))
	for _, t := range knownTypes {
		known[t] = true
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		known:    known,
		logger:   logger,
	}
}

// Publish publishes events to all registered handlers synchronously
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		if event == nil {
			continue
		}
		if len(b.known) > 0 && !b.known[event.EventType()] {
			logger.For(ctx, b.logger).Warn("Dropping event of unknown type",
				zap.String("event_type", event.EventType()),
			)
			continue
		}
		for _, handler := range b.registry.GetHandlers(event.EventType()) {
			if err := b.dispatch(ctx, handler, event); err != nil {
				logger.For(ctx, b.logger).Error("Event handler failed",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types.
// Without explicit types the handler's own EventTypes are used.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Event handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
