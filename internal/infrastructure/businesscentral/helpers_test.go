package businesscentral

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/erp/bcsync/internal/domain/integration"
)

type memorySettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemorySettings(values map[string]string) *memorySettings {
	if values == nil {
		values = map[string]string{}
	}
	return &memorySettings{values: values}
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

type staticToken struct {
	token string
	err   error
	calls int
}

func (s *staticToken) GetAccessToken(context.Context) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

var errNoToken = errors.New("no token stored")

func newTestClient(t *testing.T, apiURL string, tokens integration.AccessTokenSource) *Client {
	t.Helper()
	settings := newMemorySettings(map[string]string{
		integration.SettingAPIURL:    apiURL,
		integration.SettingCompanyID: "c0ffee00-0000-0000-0000-000000000001",
	})
	client, err := NewClient(NewConfig(), settings, tokens, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}
