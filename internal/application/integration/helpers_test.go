package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/shared"
)

const (
	testClientID = "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f"
	testSecret   = "s3cr3t-value-0123456789"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

type memorySettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemorySettings(values map[string]string) *memorySettings {
	s := &memorySettings{values: map[string]string{}}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func configuredSettings() *memorySettings {
	return newMemorySettings(map[string]string{
		integration.SettingClientID:     testClientID,
		integration.SettingClientSecret: testSecret,
		integration.SettingTenantID:     "contoso",
	})
}

func (s *memorySettings) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *memorySettings) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// ---------------------------------------------------------------------------
// Token and state stores
// ---------------------------------------------------------------------------

type memoryTokenStore struct {
	mu    sync.Mutex
	state *integration.TokenState
	saves int
}

func (s *memoryTokenStore) Load(_ context.Context) (*integration.TokenState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, integration.ErrTokenNotFound
	}
	copied := *s.state
	return &copied, nil
}

func (s *memoryTokenStore) Save(_ context.Context, state integration.TokenState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	s.saves++
	return nil
}

func (s *memoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
	return nil
}

func (s *memoryTokenStore) current() *integration.TokenState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	copied := *s.state
	return &copied
}

type memoryStateStore struct {
	mu      sync.Mutex
	pending *integration.OAuthState
}

func (s *memoryStateStore) Put(_ context.Context, state integration.OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &state
	return nil
}

func (s *memoryStateStore) Consume(_ context.Context) (*integration.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil, integration.ErrStateNotFound
	}
	state := s.pending
	s.pending = nil
	return state, nil
}

func (s *memoryStateStore) Pending(_ context.Context) (*integration.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil, integration.ErrStateNotFound
	}
	copied := *s.pending
	return &copied, nil
}

func (s *memoryStateStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	return nil
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// MockTokenEndpoint is a mock implementation of TokenEndpoint
type MockTokenEndpoint struct {
	mock.Mock
}

func (m *MockTokenEndpoint) AuthorizeURL(cred integration.OAuthCredential, redirectURI, scope, state string) string {
	args := m.Called(cred, redirectURI, scope, state)
	return args.String(0)
}

func (m *MockTokenEndpoint) ExchangeCode(ctx context.Context, cred integration.OAuthCredential, code, redirectURI string) (*integration.TokenResponse, error) {
	args := m.Called(ctx, cred, code, redirectURI)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenResponse), args.Error(1)
}

func (m *MockTokenEndpoint) Refresh(ctx context.Context, cred integration.OAuthCredential, refreshToken string) (*integration.TokenResponse, error) {
	args := m.Called(ctx, cred, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenResponse), args.Error(1)
}

func (m *MockTokenEndpoint) ClientCredentials(ctx context.Context, cred integration.OAuthCredential, scope string) (*integration.TokenResponse, error) {
	args := m.Called(ctx, cred, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenResponse), args.Error(1)
}

// MockTokenInspector is a mock implementation of TokenInspector
type MockTokenInspector struct {
	mock.Mock
}

func (m *MockTokenInspector) Inspect(accessToken string) (*integration.TokenClaims, error) {
	args := m.Called(accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenClaims), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type tokenFixture struct {
	settings *memorySettings
	tokens   *memoryTokenStore
	states   *memoryStateStore
	endpoint *MockTokenEndpoint
	events   *recordingPublisher
	clock    *testClock
	manager  *TokenManager
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTokenFixture(t *testing.T, config TokenManagerConfig, opts ...TokenManagerOption) *tokenFixture {
	t.Helper()
	f := &tokenFixture{
		settings: configuredSettings(),
		tokens:   &memoryTokenStore{},
		states:   &memoryStateStore{},
		endpoint: new(MockTokenEndpoint),
		events:   &recordingPublisher{},
		clock:    &testClock{now: testNow},
	}
	if config.RedirectURL == "" {
		config.RedirectURL = "https://erp.example.com/api/v1/erp/oauth/callback"
	}
	base := []TokenManagerOption{
		WithClock(f.clock.Now),
		WithNonceSource(func() (string, error) { return "0123456789abcdef0123456789abcdef", nil }),
		WithEventPublisher(f.events),
	}
	f.manager = NewTokenManager(f.settings, f.tokens, f.states, f.endpoint, config, zap.NewNop(), append(base, opts...)...)
	return f
}
