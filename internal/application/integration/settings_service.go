package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
)

// MaskedSecret replaces secret values on read. Writing it back leaves the secret unchanged.
const MaskedSecret = "********"

// ErrUnknownSetting indicates a key outside the runtime settings
var ErrUnknownSetting = errors.New("integration: unknown setting")

// SettingsStore is the settings table with bulk access
type SettingsStore interface {
	integration.SettingsProvider
	SetMany(ctx context.Context, values map[string]string) error
	All(ctx context.Context) (map[string]string, error)
}

// Revoker drops stored tokens
type Revoker interface {
	Revoke(ctx context.Context) error
}

// settingsInput is validated before anything is written
type settingsInput struct {
	ClientID        string `validate:"omitempty,uuid"`
	ClientSecret    string `validate:"omitempty,min=16"`
	TenantID        string `validate:"omitempty,max=64"`
	APIURL          string `validate:"omitempty,url"`
	CompanyID       string `validate:"omitempty,uuid"`
	DokobitEndpoint string `validate:"omitempty,url"`
	DokobitAPIKey   string `validate:"omitempty,min=8"`
}

var settingKeys = []string{
	integration.SettingClientID,
	integration.SettingClientSecret,
	integration.SettingTenantID,
	integration.SettingAPIURL,
	integration.SettingCompanyID,
	integration.SettingDokobitEndpoint,
	integration.SettingDokobitAPIKey,
}

// credentialKeys invalidate stored tokens when they change
var credentialKeys = map[string]bool{
	integration.SettingClientID:     true,
	integration.SettingClientSecret: true,
	integration.SettingTenantID:     true,
}

// SettingsService reads and writes the runtime ERP settings
type SettingsService struct {
	store    SettingsStore
	tokens   Revoker
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSettingsService creates a SettingsService
func NewSettingsService(store SettingsStore, tokens Revoker, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		store:    store,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Get returns every runtime setting with secrets masked
func (s *SettingsService) Get(ctx context.Context) (map[string]string, error) {
	stored, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(settingKeys))
	for _, key := range settingKeys {
		value := stored[key]
		if integration.SecretSettings[key] && value != "" {
			value = MaskedSecret
		}
		out[key] = value
	}
	return out, nil
}

// Update validates and stores the given settings. A changed credential revokes the stored tokens.
// It returns the keys that actually changed.
func (s *SettingsService) Update(ctx context.Context, values map[string]string) ([]string, error) {
	current, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]string, len(values))
	for key, value := range values {
		if !isSettingKey(key) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
		}
		value = strings.TrimSpace(value)
		if integration.SecretSettings[key] && value == MaskedSecret {
			continue
		}
		if key == integration.SettingAPIURL || key == integration.SettingDokobitEndpoint {
			value = strings.TrimRight(value, "/")
		}
		if current[key] != value {
			changes[key] = value
		}
	}

	if err := s.validate.Struct(toInput(changes)); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrValidation, err)
	}
	if len(changes) == 0 {
		return []string{}, nil
	}
	if err := s.store.SetMany(ctx, changes); err != nil {
		return nil, err
	}

	changed := make([]string, 0, len(changes))
	credentialChanged := false
	for key := range changes {
		changed = append(changed, key)
		credentialChanged = credentialChanged || credentialKeys[key]
	}
	sort.Strings(changed)
	s.logger.Info("ERP settings updated", zap.Strings("keys", changed))

	if credentialChanged && s.tokens != nil {
		if err := s.tokens.Revoke(ctx); err != nil {
			return changed, fmt.Errorf("settings saved but stored tokens could not be revoked: %w", err)
		}
		s.logger.Info("OAuth credential changed, stored tokens revoked")
	}
	return changed, nil
}

func isSettingKey(key string) bool {
	for _, k := range settingKeys {
		if k == key {
			return true
		}
	}
	return false
}

func toInput(values map[string]string) settingsInput {
	return settingsInput{
		ClientID:        values[integration.SettingClientID],
		ClientSecret:    values[integration.SettingClientSecret],
		TenantID:        values[integration.SettingTenantID],
		APIURL:          values[integration.SettingAPIURL],
		CompanyID:       values[integration.SettingCompanyID],
		DokobitEndpoint: values[integration.SettingDokobitEndpoint],
		DokobitAPIKey:   values[integration.SettingDokobitAPIKey],
	}
}
