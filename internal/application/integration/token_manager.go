package integration

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/telemetry"
)

const (
	// DefaultRefreshSkew refreshes tokens this long before they expire
	DefaultRefreshSkew = 300 * time.Second
	// DefaultStateTTL is the lifetime of a pending authorization nonce
	DefaultStateTTL = 600 * time.Second
	// DefaultTokenLifetime is assumed when neither expires_in nor the JWT exp claim is available
	DefaultTokenLifetime = 3600 * time.Second
	// DefaultScope asks for delegated Business Central access plus a refresh token
	DefaultScope = "https://api.businesscentral.dynamics.com/.default offline_access"
	// DefaultServiceScope is the app-only scope of the client-credentials grant
	DefaultServiceScope = "https://api.businesscentral.dynamics.com/.default"

	grantAuthorizationCode = "authorization_code"
	grantClientCredentials = "client_credentials"
	nonceBytes             = 16
)

// TokenManagerConfig holds the OAuth flow settings that are not runtime editable
type TokenManagerConfig struct {
	RedirectURL            string
	Scope                  string
	ServiceScope           string
	RefreshSkew            time.Duration
	StateTTL               time.Duration
	AllowClientCredentials bool
}

func (c *TokenManagerConfig) applyDefaults() {
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.ServiceScope == "" {
		c.ServiceScope = DefaultServiceScope
	}
	if c.RefreshSkew <= 0 {
		c.RefreshSkew = DefaultRefreshSkew
	}
	if c.StateTTL <= 0 {
		c.StateTTL = DefaultStateTTL
	}
}

// CallbackParams are the query parameters the identity provider redirects back with
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// TokenManagerOption configures a TokenManager
type TokenManagerOption func(*TokenManager)

// WithClock replaces time.Now
func WithClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) { m.now = now }
}

// WithNonceSource replaces the random nonce generator
func WithNonceSource(nonce func() (string, error)) TokenManagerOption {
	return func(m *TokenManager) { m.nonce = nonce }
}

// WithTokenInspector reads expiry and tenant from JWT access tokens
func WithTokenInspector(inspector integration.TokenInspector) TokenManagerOption {
	return func(m *TokenManager) { m.inspector = inspector }
}

// WithEventPublisher publishes connection events
func WithEventPublisher(events shared.EventPublisher) TokenManagerOption {
	return func(m *TokenManager) { m.events = events }
}

// WithMetrics records refresh outcomes
func WithMetrics(metrics *telemetry.SyncMetrics) TokenManagerOption {
	return func(m *TokenManager) { m.metrics = metrics }
}

// TokenManager owns the authorization-code flow and hands out valid access tokens.
// Token state lives only in the TokenStore; the manager keeps no copy of it.
// Writes are serialized by mu and concurrent refreshes collapse into one request.
type TokenManager struct {
	settings  integration.SettingsProvider
	tokens    integration.TokenStore
	states    integration.StateStore
	endpoint  integration.TokenEndpoint
	inspector integration.TokenInspector
	events    shared.EventPublisher
	metrics   *telemetry.SyncMetrics
	logger    *zap.Logger
	config    TokenManagerConfig

	now   func() time.Time
	nonce func() (string, error)

	mu             sync.Mutex
	refreshes      singleflight.Group
	reauthRequired atomic.Bool
}

// NewTokenManager creates a TokenManager
func NewTokenManager(
	settings integration.SettingsProvider,
	tokens integration.TokenStore,
	states integration.StateStore,
	endpoint integration.TokenEndpoint,
	config TokenManagerConfig,
	logger *zap.Logger,
	opts ...TokenManagerOption,
) *TokenManager {
	config.applyDefaults()
	m := &TokenManager{
		settings: settings,
		tokens:   tokens,
		states:   states,
		endpoint: endpoint,
		logger:   logger,
		config:   config,
		now:      time.Now,
		nonce:    randomNonce,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// randomNonce returns 32 hex characters from crypto/rand
func randomNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ---------------------------------------------------------------------------
// Authorization-code flow
// ---------------------------------------------------------------------------

// Initiate stores a fresh nonce (replacing any pending one) and returns the authorize URL.
// No network call is made.
func (m *TokenManager) Initiate(ctx context.Context) (string, error) {
	cred, err := integration.LoadCredential(ctx, m.settings)
	if err != nil {
		return "", err
	}
	if !cred.Complete() {
		return "", integration.ErrConfigIncomplete
	}
	if m.config.RedirectURL == "" {
		return "", integration.ErrRedirectNotConfigured
	}

	nonce, err := m.nonce()
	if err != nil {
		return "", err
	}
	if err := m.states.Put(ctx, integration.OAuthState{Value: nonce, CreatedAt: m.now()}); err != nil {
		return "", err
	}

	m.logger.Info("OAuth authorization initiated", zap.String("tenant", cred.Tenant()))
	return m.endpoint.AuthorizeURL(cred, m.config.RedirectURL, m.config.Scope, nonce), nil
}

// HandleCallback validates the redirect and exchanges the code.
// The pending nonce is consumed whatever the outcome; stored tokens change only on success.
func (m *TokenManager) HandleCallback(ctx context.Context, params CallbackParams) (*integration.TokenState, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "TokenManager", "HandleCallback",
		telemetry.WithAttribute(telemetry.SpanAttrGrantType, grantAuthorizationCode))
	defer span.End()

	if params.Error != "" {
		if err := m.states.Clear(ctx); err != nil {
			m.logger.Warn("Failed to discard pending OAuth state", zap.Error(err))
		}
		denied := &integration.ProviderDeniedError{Code: params.Error, Description: params.ErrorDescription}
		m.logger.Warn("OAuth authorization denied by provider", zap.String("error", params.Error))
		telemetry.RecordError(span, denied)
		return nil, denied
	}

	pending, err := m.states.Consume(ctx)
	if err != nil {
		if errors.Is(err, integration.ErrStateNotFound) {
			return nil, integration.ErrStateInvalid
		}
		return nil, err
	}
	if pending.Expired(m.now(), m.config.StateTTL) || !pending.Matches(params.State) {
		m.logger.Warn("OAuth callback state rejected")
		return nil, integration.ErrStateInvalid
	}

	if strings.TrimSpace(params.Code) == "" {
		return nil, integration.ErrCodeMissing
	}

	cred, err := integration.LoadCredential(ctx, m.settings)
	if err != nil {
		return nil, err
	}
	if !cred.Complete() {
		return nil, integration.ErrConfigIncomplete
	}

	resp, err := m.endpoint.ExchangeCode(ctx, cred, params.Code, m.config.RedirectURL)
	if err != nil {
		m.logger.Warn("OAuth code exchange failed", zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", integration.ErrTokenExchangeFailed, err)
	}
	if resp.RefreshToken == "" && !m.config.AllowClientCredentials {
		return nil, fmt.Errorf("%w: response carries no refresh_token", integration.ErrTokenExchangeFailed)
	}

	state := integration.TokenState{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    m.expiry(resp),
	}
	if err := m.save(ctx, state); err != nil {
		return nil, err
	}

	m.publish(ctx, integration.NewConnectedEvent(cred.Key(), grantAuthorizationCode))
	m.logger.Info("Business Central connected",
		zap.String("grant_type", grantAuthorizationCode),
		zap.Time("expires_at", state.ExpiresAt),
	)
	telemetry.SetOK(span)
	return &state, nil
}

// ConnectServiceAccount obtains an app-only token with the client-credentials grant
func (m *TokenManager) ConnectServiceAccount(ctx context.Context) (*integration.TokenState, error) {
	if !m.config.AllowClientCredentials {
		return nil, integration.ErrClientCredentialsDisabled
	}
	cred, err := integration.LoadCredential(ctx, m.settings)
	if err != nil {
		return nil, err
	}
	if !cred.Complete() {
		return nil, integration.ErrConfigIncomplete
	}

	resp, err := m.endpoint.ClientCredentials(ctx, cred, m.config.ServiceScope)
	if err != nil {
		m.logger.Warn("Client credentials grant failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", integration.ErrTokenExchangeFailed, err)
	}

	state := integration.TokenState{AccessToken: resp.AccessToken, ExpiresAt: m.expiry(resp)}
	if err := m.save(ctx, state); err != nil {
		return nil, err
	}
	if err := m.states.Clear(ctx); err != nil {
		m.logger.Warn("Failed to discard pending OAuth state", zap.Error(err))
	}

	m.publish(ctx, integration.NewConnectedEvent(cred.Key(), grantClientCredentials))
	m.logger.Info("Business Central connected", zap.String("grant_type", grantClientCredentials))
	return &state, nil
}

// Revoke forgets the tokens and any pending nonce. Revoking twice is not an error.
func (m *TokenManager) Revoke(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.tokens.Clear(ctx); err != nil {
		return err
	}
	if err := m.states.Clear(ctx); err != nil {
		return err
	}
	m.reauthRequired.Store(false)

	cred, err := integration.LoadCredential(ctx, m.settings)
	if err == nil {
		m.publish(ctx, integration.NewDisconnectedEvent(cred.Key()))
	}
	m.logger.Info("Business Central disconnected")
	return nil
}

// ---------------------------------------------------------------------------
// Token retrieval
// ---------------------------------------------------------------------------

// GetAccessToken returns a token valid for at least the refresh skew, refreshing it first when needed.
// A failed refresh leaves the stored state as it was and returns ErrRefreshFailed.
func (m *TokenManager) GetAccessToken(ctx context.Context) (string, error) {
	state, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	if !state.NeedsRefresh(m.now(), m.config.RefreshSkew) {
		return state.AccessToken, nil
	}

	// callers share the flight, so one caller going away must not cancel it
	flightCtx := context.WithoutCancel(ctx)
	token, err, _ := m.refreshes.Do("refresh", func() (any, error) {
		return m.refresh(flightCtx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := telemetry.StartServiceSpan(ctx, "TokenManager", "Refresh")
	defer span.End()

	// another flight or process may have refreshed while we waited
	state, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	if !state.NeedsRefresh(m.now(), m.config.RefreshSkew) {
		return state.AccessToken, nil
	}

	cred, err := integration.LoadCredential(ctx, m.settings)
	if err != nil {
		return "", err
	}

	resp, grant, err := m.renew(ctx, cred, state)
	telemetry.SetAttributes(span, telemetry.SpanAttrGrantType, grant)
	m.metrics.RecordTokenRefresh(ctx, err)
	if err != nil {
		m.reauthRequired.Store(true)
		m.logger.Warn("Access token refresh failed, re-authentication required", zap.Error(err))
		m.publish(ctx, integration.NewTokenRefreshFailedEvent(cred.Key(), err.Error()))
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("%w: %w", integration.ErrRefreshFailed, err)
	}

	next := integration.TokenState{
		AccessToken:  resp.AccessToken,
		RefreshToken: state.RefreshToken,
		ExpiresAt:    m.expiry(resp),
	}
	rotated := false
	if resp.RefreshToken != "" {
		rotated = resp.RefreshToken != state.RefreshToken
		next.RefreshToken = resp.RefreshToken
	}
	if err := m.tokens.Save(ctx, next); err != nil {
		return "", err
	}
	m.reauthRequired.Store(false)

	m.publish(ctx, integration.NewTokenRefreshedEvent(cred.Key(), rotated))
	m.logger.Debug("Access token refreshed",
		zap.String("grant_type", grant),
		zap.Bool("refresh_token_rotated", rotated),
		zap.Time("expires_at", next.ExpiresAt),
	)
	telemetry.SetOK(span)
	return next.AccessToken, nil
}

// renew picks the refresh grant, or the client-credentials grant for app-only connections
func (m *TokenManager) renew(ctx context.Context, cred integration.OAuthCredential, state *integration.TokenState) (*integration.TokenResponse, string, error) {
	if !cred.Complete() {
		return nil, "", integration.ErrConfigIncomplete
	}
	if state.RefreshToken != "" {
		resp, err := m.endpoint.Refresh(ctx, cred, state.RefreshToken)
		return resp, "refresh_token", err
	}
	if m.config.AllowClientCredentials {
		resp, err := m.endpoint.ClientCredentials(ctx, cred, m.config.ServiceScope)
		return resp, grantClientCredentials, err
	}
	return nil, "", errors.New("no refresh token stored")
}

// Status reports where the credential stands in the authorization flow
func (m *TokenManager) Status(ctx context.Context) (*integration.ConnectionInfo, error) {
	cred, err := integration.LoadCredential(ctx, m.settings)
	if err != nil {
		return nil, err
	}
	if !cred.Complete() {
		return &integration.ConnectionInfo{Status: integration.ConnectionStatusUnconfigured}, nil
	}

	state, err := m.load(ctx)
	switch {
	case err == nil && !m.reauthRequired.Load():
		info := &integration.ConnectionInfo{
			Status:          integration.ConnectionStatusAuthenticated,
			HasRefreshToken: state.RefreshToken != "",
		}
		expiresAt := state.ExpiresAt
		info.ExpiresAt = &expiresAt
		if m.inspector != nil {
			if claims, err := m.inspector.Inspect(state.AccessToken); err == nil {
				info.TenantID = claims.TenantID
			}
		}
		return info, nil
	case err == nil, errors.Is(err, integration.ErrNotAuthenticated):
	default:
		return nil, err
	}

	pending, err := m.states.Pending(ctx)
	if err == nil && !pending.Expired(m.now(), m.config.StateTTL) {
		return &integration.ConnectionInfo{Status: integration.ConnectionStatusAwaitingCallback}, nil
	}
	if err != nil && !errors.Is(err, integration.ErrStateNotFound) {
		return nil, err
	}
	return &integration.ConnectionInfo{Status: integration.ConnectionStatusConfigured}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (m *TokenManager) load(ctx context.Context) (*integration.TokenState, error) {
	state, err := m.tokens.Load(ctx)
	if err != nil {
		if errors.Is(err, integration.ErrTokenNotFound) {
			return nil, integration.ErrNotAuthenticated
		}
		return nil, err
	}
	if state.IsEmpty() {
		return nil, integration.ErrNotAuthenticated
	}
	return state, nil
}

func (m *TokenManager) save(ctx context.Context, state integration.TokenState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.tokens.Save(ctx, state); err != nil {
		return err
	}
	m.reauthRequired.Store(false)
	return nil
}

// expiry is now + expires_in, else the JWT exp claim, else now + DefaultTokenLifetime
func (m *TokenManager) expiry(resp *integration.TokenResponse) time.Time {
	now := m.now()
	if resp.ExpiresIn > 0 {
		return now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if m.inspector != nil {
		if claims, err := m.inspector.Inspect(resp.AccessToken); err == nil && claims.ExpiresAt.After(now) {
			return claims.ExpiresAt
		}
	}
	return now.Add(DefaultTokenLifetime)
}

func (m *TokenManager) publish(ctx context.Context, event shared.DomainEvent) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, event); err != nil {
		m.logger.Warn("Failed to publish event", zap.String("event_type", event.EventType()), zap.Error(err))
	}
}
