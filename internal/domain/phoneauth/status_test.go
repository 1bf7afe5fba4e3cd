package phoneauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAuthStatus(t *testing.T) {
	tests := []struct {
		raw      string
		expected AuthStatus
	}{
		{"ok", AuthStatusAuthenticated},
		{"OK", AuthStatusAuthenticated},
		{"authenticated", AuthStatusAuthenticated},
		{"waiting", AuthStatusPending},
		{" pending ", AuthStatusPending},
		{"canceled", AuthStatusFailed},
		{"expired", AuthStatusFailed},
		{"", AuthStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAuthStatus(tt.raw))
		})
	}
}

func TestAuthStatus_IsTerminal(t *testing.T) {
	assert.False(t, AuthStatusPending.IsTerminal())
	assert.True(t, AuthStatusAuthenticated.IsTerminal())
	assert.True(t, AuthStatusFailed.IsTerminal())
}

func TestNewResolvedEvent(t *testing.T) {
	event := NewResolvedEvent("tok", AuthStatusAuthenticated, 3)

	assert.Equal(t, EventTypeResolved, event.EventType())
	assert.Equal(t, "tok", event.AggregateKey())
	assert.Equal(t, 3, event.Attempts)
}
