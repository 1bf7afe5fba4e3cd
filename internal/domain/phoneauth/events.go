package phoneauth

import "github.com/erp/bcsync/internal/domain/shared"

// EventTypeResolved is published when a challenge reaches a terminal status
const EventTypeResolved = "phone_auth.resolved"

// ResolvedEvent reports the outcome of a challenge.
// The key is the challenge token; the phone number is not carried.
type ResolvedEvent struct {
	shared.BaseDomainEvent
	Status   AuthStatus `json:"status"`
	Attempts int        `json:"attempts"`
}

// NewResolvedEvent creates a ResolvedEvent
func NewResolvedEvent(token string, status AuthStatus, attempts int) *ResolvedEvent {
	return &ResolvedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeResolved, token),
		Status:          status,
		Attempts:        attempts,
	}
}
