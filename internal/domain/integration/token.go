package integration

import (
	"crypto/subtle"
	"time"
)

// TokenState is the persisted access/refresh token pair.
// It is always written as a whole.
type TokenState struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IsEmpty reports whether no access token is held
func (t *TokenState) IsEmpty() bool {
	return t == nil || t.AccessToken == ""
}

// NeedsRefresh reports whether the token is within skew of its expiry (or past it)
func (t *TokenState) NeedsRefresh(now time.Time, skew time.Duration) bool {
	return now.Add(skew).After(t.ExpiresAt)
}

// Validate enforces that an access token always carries an expiry
func (t *TokenState) Validate() error {
	if t.AccessToken != "" && t.ExpiresAt.IsZero() {
		return ErrCorruptTokenState
	}
	return nil
}

// TokenResponse is a successful token endpoint response
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn in seconds; zero when the provider did not say
	ExpiresIn int64
	TokenType string
	Scope     string
}

// OAuthState is the pending anti-CSRF nonce of an authorization flow
type OAuthState struct {
	Value     string
	CreatedAt time.Time
}

// Expired reports whether the nonce is older than ttl
func (s *OAuthState) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// Matches compares the nonce with a callback value in constant time
func (s *OAuthState) Matches(value string) bool {
	if value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.Value), []byte(value)) == 1
}

// ---------------------------------------------------------------------------
// Connection status
// ---------------------------------------------------------------------------

// ConnectionStatus is the position of a credential in the authorization state machine
type ConnectionStatus string

const (
	ConnectionStatusUnconfigured     ConnectionStatus = "unconfigured"
	ConnectionStatusConfigured       ConnectionStatus = "configured"
	ConnectionStatusAwaitingCallback ConnectionStatus = "awaiting_callback"
	ConnectionStatusAuthenticated    ConnectionStatus = "authenticated"
)

// IsValid checks if the status is known
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionStatusUnconfigured, ConnectionStatusConfigured,
		ConnectionStatusAwaitingCallback, ConnectionStatusAuthenticated:
		return true
	default:
		return false
	}
}

// String returns the string representation
func (s ConnectionStatus) String() string {
	return string(s)
}

// ConnectionInfo describes the current connection for operators
type ConnectionInfo struct {
	Status    ConnectionStatus `json:"status"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	TenantID  string           `json:"tenant_id,omitempty"`
	// HasRefreshToken is false for client-credentials connections
	HasRefreshToken bool `json:"has_refresh_token"`
}
