package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
)

type memorySettingsStore struct {
	*memorySettings
	setManyCalls int
}

func (s *memorySettingsStore) SetMany(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setManyCalls++
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *memorySettingsStore) All(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

// MockRevoker is a mock implementation of Revoker
type MockRevoker struct {
	mock.Mock
}

func (m *MockRevoker) Revoke(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newSettingsFixture() (*SettingsService, *memorySettingsStore, *MockRevoker) {
	store := &memorySettingsStore{memorySettings: configuredSettings()}
	store.values[integration.SettingDokobitAPIKey] = "dokobit-key-123"
	revoker := new(MockRevoker)
	return NewSettingsService(store, revoker, zap.NewNop()), store, revoker
}

func TestSettingsService_GetMasksSecrets(t *testing.T) {
	svc, _, _ := newSettingsFixture()

	values, err := svc.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testClientID, values[integration.SettingClientID])
	assert.Equal(t, MaskedSecret, values[integration.SettingClientSecret])
	assert.Equal(t, MaskedSecret, values[integration.SettingDokobitAPIKey])
	assert.Equal(t, "", values[integration.SettingAPIURL])
	assert.Contains(t, values, integration.SettingCompanyID)
}

func TestSettingsService_Update(t *testing.T) {
	t.Run("non-credential change keeps tokens", func(t *testing.T) {
		svc, store, revoker := newSettingsFixture()

		changed, err := svc.Update(context.Background(), map[string]string{
			integration.SettingAPIURL:       "https://api.businesscentral.dynamics.com/v2.0/contoso/production/api/v2.0/",
			integration.SettingCompanyID:    "c0ffee00-0000-0000-0000-000000000001",
			integration.SettingClientSecret: MaskedSecret,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{integration.SettingAPIURL, integration.SettingCompanyID}, changed)
		assert.Equal(t, "https://api.businesscentral.dynamics.com/v2.0/contoso/production/api/v2.0", store.values[integration.SettingAPIURL])
		assert.Equal(t, testSecret, store.values[integration.SettingClientSecret])
		revoker.AssertNotCalled(t, "Revoke", mock.Anything)
	})

	t.Run("credential change revokes tokens", func(t *testing.T) {
		svc, store, revoker := newSettingsFixture()
		revoker.On("Revoke", mock.Anything).Return(nil).Once()

		changed, err := svc.Update(context.Background(), map[string]string{
			integration.SettingClientSecret: "a-brand-new-secret-value",
		})
		require.NoError(t, err)

		assert.Equal(t, []string{integration.SettingClientSecret}, changed)
		assert.Equal(t, "a-brand-new-secret-value", store.values[integration.SettingClientSecret])
		revoker.AssertExpectations(t)
	})

	t.Run("unchanged values are not written", func(t *testing.T) {
		svc, store, revoker := newSettingsFixture()

		changed, err := svc.Update(context.Background(), map[string]string{
			integration.SettingClientID: " " + testClientID + " ",
		})
		require.NoError(t, err)
		assert.Empty(t, changed)
		assert.Equal(t, 0, store.setManyCalls)
		revoker.AssertNotCalled(t, "Revoke", mock.Anything)
	})

	t.Run("revoke failure is reported", func(t *testing.T) {
		svc, _, revoker := newSettingsFixture()
		revoker.On("Revoke", mock.Anything).Return(errors.New("db down"))

		changed, err := svc.Update(context.Background(), map[string]string{integration.SettingTenantID: "fabrikam"})
		assert.Error(t, err)
		assert.Equal(t, []string{integration.SettingTenantID}, changed)
	})
}

func TestSettingsService_UpdateRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		wantErr error
	}{
		{"unknown key", map[string]string{"webhook_url": "https://x"}, ErrUnknownSetting},
		{"client id not a guid", map[string]string{integration.SettingClientID: "my-app"}, integration.ErrValidation},
		{"short secret", map[string]string{integration.SettingClientSecret: "short"}, integration.ErrValidation},
		{"api url not a url", map[string]string{integration.SettingAPIURL: "businesscentral"}, integration.ErrValidation},
		{"company id not a guid", map[string]string{integration.SettingCompanyID: "CRONUS"}, integration.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newSettingsFixture()

			_, err := svc.Update(context.Background(), tt.values)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, store.setManyCalls)
		})
	}
}
