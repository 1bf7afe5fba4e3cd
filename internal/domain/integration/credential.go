package integration

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultTenantID is used when no Entra tenant is configured
const DefaultTenantID = "common"

// Setting keys of the runtime configuration store
const (
	SettingClientID        = "client_id"
	SettingClientSecret    = "client_secret"
	SettingTenantID        = "tenant_id"
	SettingAPIURL          = "api_url"
	SettingCompanyID       = "company_id"
	SettingDokobitEndpoint = "dokobit_api_endpoint"
	SettingDokobitAPIKey   = "dokobit_api_key"
)

// SecretSettings lists keys whose values must never be echoed back or logged
var SecretSettings = map[string]bool{
	SettingClientSecret:  true,
	SettingDokobitAPIKey: true,
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// OAuthCredential is one Business Central app registration
type OAuthCredential struct {
	ClientID     string `validate:"required,uuid"`
	ClientSecret string `validate:"required,min=16"`
	TenantID     string `validate:"omitempty,max=64"`
}

// Complete reports whether the credential can start an authorization flow
func (c OAuthCredential) Complete() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// Tenant returns the configured tenant or "common"
func (c OAuthCredential) Tenant() string {
	if strings.TrimSpace(c.TenantID) == "" {
		return DefaultTenantID
	}
	return c.TenantID
}

// Validate checks the credential shape (GUID client id, secret of at least 16 characters)
func (c OAuthCredential) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Key identifies the credential for locking and event routing
func (c OAuthCredential) Key() string {
	return c.ClientID
}

// LoadCredential reads the credential from the settings store
func LoadCredential(ctx context.Context, settings SettingsProvider) (OAuthCredential, error) {
	clientID, err := settings.Get(ctx, SettingClientID)
	if err != nil {
		return OAuthCredential{}, err
	}
	secret, err := settings.Get(ctx, SettingClientSecret)
	if err != nil {
		return OAuthCredential{}, err
	}
	tenant, err := settings.Get(ctx, SettingTenantID)
	if err != nil {
		return OAuthCredential{}, err
	}
	return OAuthCredential{
		ClientID:     strings.TrimSpace(clientID),
		ClientSecret: strings.TrimSpace(secret),
		TenantID:     strings.TrimSpace(tenant),
	}, nil
}

// APIEndpoint is the company scoped Business Central REST location
type APIEndpoint struct {
	BaseURL   string
	CompanyID string
}

// Configured reports whether both parts are present
func (e APIEndpoint) Configured() bool {
	return e.BaseURL != "" && e.CompanyID != ""
}

// LoadAPIEndpoint reads api url and company id from the settings store
func LoadAPIEndpoint(ctx context.Context, settings SettingsProvider) (APIEndpoint, error) {
	baseURL, err := settings.Get(ctx, SettingAPIURL)
	if err != nil {
		return APIEndpoint{}, err
	}
	companyID, err := settings.Get(ctx, SettingCompanyID)
	if err != nil {
		return APIEndpoint{}, err
	}
	return APIEndpoint{
		BaseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		CompanyID: strings.TrimSpace(companyID),
	}, nil
}
