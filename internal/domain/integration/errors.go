package integration

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// OAuth flow errors
// ---------------------------------------------------------------------------

var (
	// ErrConfigIncomplete indicates client id or client secret is not configured
	ErrConfigIncomplete = errors.New("integration: oauth credential is incomplete")
	// ErrProviderDenied indicates the authorization server returned an error to the callback
	ErrProviderDenied = errors.New("integration: authorization denied by provider")
	// ErrStateInvalid indicates the callback state is missing, expired or does not match
	ErrStateInvalid = errors.New("integration: oauth state is invalid or expired")
	// ErrCodeMissing indicates the callback carried no authorization code
	ErrCodeMissing = errors.New("integration: authorization code is missing")
	// ErrTokenExchangeFailed indicates the authorization code could not be exchanged
	ErrTokenExchangeFailed = errors.New("integration: token exchange failed")
	// ErrRefreshFailed indicates the refresh grant failed; re-authentication is required
	ErrRefreshFailed = errors.New("integration: token refresh failed, re-authentication required")
	// ErrNotAuthenticated indicates no token has been stored yet
	ErrNotAuthenticated = errors.New("integration: not authenticated")
	// ErrCorruptTokenState indicates the persisted token cannot be used as is
	ErrCorruptTokenState = errors.New("integration: persisted token state is corrupt")
	// ErrRedirectNotConfigured indicates no callback URL is registered for the authorization flow
	ErrRedirectNotConfigured = errors.New("integration: oauth redirect url is not configured")
	// ErrClientCredentialsDisabled indicates the app-only grant is not allowed by configuration
	ErrClientCredentialsDisabled = errors.New("integration: client credentials grant is disabled")
)

// ---------------------------------------------------------------------------
// Store errors
// ---------------------------------------------------------------------------

var (
	// ErrTokenNotFound is returned by a TokenStore holding no token
	ErrTokenNotFound = errors.New("integration: token not found")
	// ErrStateNotFound is returned by a StateStore holding no pending state
	ErrStateNotFound = errors.New("integration: oauth state not found")
)

// ---------------------------------------------------------------------------
// API client and sync errors
// ---------------------------------------------------------------------------

var (
	// ErrUnauthenticated indicates an ERP API call was refused locally for lack of a token
	ErrUnauthenticated = errors.New("integration: unauthenticated, no usable access token")
	// ErrNotFound indicates a referenced record could not be resolved locally
	ErrNotFound = errors.New("integration: referenced record not found")
	// ErrValidation indicates a malformed entity payload
	ErrValidation = errors.New("integration: invalid entity payload")
	// ErrUnknownFamily indicates an entity family that cannot be synchronized
	ErrUnknownFamily = errors.New("integration: unknown entity family")
	// ErrSyncInProgress indicates another run of the same family holds the run lock
	ErrSyncInProgress = errors.New("integration: sync already in progress")
	// ErrAPINotConfigured indicates api url or company id is missing
	ErrAPINotConfigured = errors.New("integration: erp api url or company id not configured")
)

// ProviderDeniedError carries the error the authorization server sent back
type ProviderDeniedError struct {
	Code        string
	Description string
}

func (e *ProviderDeniedError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", ErrProviderDenied.Error(), e.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrProviderDenied.Error(), e.Code, e.Description)
}

// Unwrap returns ErrProviderDenied
func (e *ProviderDeniedError) Unwrap() error {
	return ErrProviderDenied
}

// NotFoundError names the reference that could not be resolved
type NotFoundError struct {
	Kind       string
	ExternalID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrNotFound.Error(), e.Kind, e.ExternalID)
}

// Unwrap returns ErrNotFound
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
