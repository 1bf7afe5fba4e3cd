package shared

import "context"

// EventHandler reacts to published events such as erp.sync_completed.
// A handler with no EventTypes receives every event.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher is what the sync engine and phone auth service publish through
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber registers handlers. Without explicit types the handler's EventTypes apply.
type EventSubscriber interface {
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
}

// EventBus publishes and subscribes
type EventBus interface {
	EventPublisher
	EventSubscriber
}
