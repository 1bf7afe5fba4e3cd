package integration

import (
	"github.com/erp/bcsync/internal/domain/shared"
)

// Event types published by the integration context
const (
	EventTypeConnected          = "erp.connected"
	EventTypeDisconnected       = "erp.disconnected"
	EventTypeTokenRefreshed     = "erp.token_refreshed"
	EventTypeTokenRefreshFailed = "erp.token_refresh_failed"
	EventTypeSyncCompleted      = "erp.sync_completed"
)

// AllEventTypes lists every integration event type
func AllEventTypes() []string {
	return []string{
		EventTypeConnected,
		EventTypeDisconnected,
		EventTypeTokenRefreshed,
		EventTypeTokenRefreshFailed,
		EventTypeSyncCompleted,
	}
}

// ConnectedEvent is published after a successful code exchange or client-credentials grant
type ConnectedEvent struct {
	shared.BaseDomainEvent
	GrantType string `json:"grant_type"`
}

// NewConnectedEvent creates a ConnectedEvent
func NewConnectedEvent(credentialKey, grantType string) *ConnectedEvent {
	return &ConnectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeConnected, credentialKey),
		GrantType:       grantType,
	}
}

// DisconnectedEvent is published after revoke
type DisconnectedEvent struct {
	shared.BaseDomainEvent
}

// NewDisconnectedEvent creates a DisconnectedEvent
func NewDisconnectedEvent(credentialKey string) *DisconnectedEvent {
	return &DisconnectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDisconnected, credentialKey),
	}
}

// TokenRefreshedEvent is published after a successful refresh
type TokenRefreshedEvent struct {
	shared.BaseDomainEvent
	RefreshTokenRotated bool `json:"refresh_token_rotated"`
}

// NewTokenRefreshedEvent creates a TokenRefreshedEvent
func NewTokenRefreshedEvent(credentialKey string, rotated bool) *TokenRefreshedEvent {
	return &TokenRefreshedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeTokenRefreshed, credentialKey),
		RefreshTokenRotated: rotated,
	}
}

// TokenRefreshFailedEvent is published when a refresh fails and re-authentication is needed
type TokenRefreshFailedEvent struct {
	shared.BaseDomainEvent
	Reason string `json:"reason"`
}

// NewTokenRefreshFailedEvent creates a TokenRefreshFailedEvent
func NewTokenRefreshFailedEvent(credentialKey, reason string) *TokenRefreshFailedEvent {
	return &TokenRefreshFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTokenRefreshFailed, credentialKey),
		Reason:          reason,
	}
}

// SyncCompletedEvent is published at the end of each family run
type SyncCompletedEvent struct {
	shared.BaseDomainEvent
	Family  EntityFamily `json:"family"`
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Errors  int          `json:"errors"`
}

// NewSyncCompletedEvent creates a SyncCompletedEvent from a finished result
func NewSyncCompletedEvent(result *SyncRunResult) *SyncCompletedEvent {
	summary := result.Summary()
	return &SyncCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSyncCompleted, summary.Family.String()),
		Family:          summary.Family,
		Created:         summary.Created,
		Updated:         summary.Updated,
		Errors:          summary.Errors,
	}
}
