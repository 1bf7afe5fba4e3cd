package integration

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Configuration and token persistence
// ---------------------------------------------------------------------------

// SettingsProvider is the string keyed runtime configuration store
type SettingsProvider interface {
	// Get returns the value for key, or "" when unset
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key
	Set(ctx context.Context, key, value string) error
}

// TokenStore persists the TokenState of one credential
type TokenStore interface {
	// Load returns ErrTokenNotFound when nothing is stored
	Load(ctx context.Context) (*TokenState, error)
	// Save replaces the stored state as a unit
	Save(ctx context.Context, state TokenState) error
	// Clear removes the stored state; clearing an empty store is not an error
	Clear(ctx context.Context) error
}

// StateStore holds the single pending OAuth nonce of one credential
type StateStore interface {
	// Put replaces any pending nonce
	Put(ctx context.Context, state OAuthState) error
	// Consume returns and deletes the pending nonce; ErrStateNotFound when none
	Consume(ctx context.Context) (*OAuthState, error)
	// Pending returns the pending nonce without consuming it; ErrStateNotFound when none
	Pending(ctx context.Context) (*OAuthState, error)
	// Clear drops any pending nonce
	Clear(ctx context.Context) error
}

// ---------------------------------------------------------------------------
// Upsert repositories (lookup by external id only)
// ---------------------------------------------------------------------------

// UpsertRepository stores one entity family.
// FindByExternalID returns shared.ErrNotFound when no row matches.
type UpsertRepository[T any] interface {
	FindByExternalID(ctx context.Context, externalID string) (*T, error)
	Create(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
}

// ItemRepository stores items
type ItemRepository interface {
	UpsertRepository[Item]
}

// PriceListRepository stores price lists
type PriceListRepository interface {
	UpsertRepository[PriceList]
}

// PriceListLineRepository stores price list lines
type PriceListLineRepository interface {
	UpsertRepository[PriceListLine]
}

// CustomerRepository stores customers
type CustomerRepository interface {
	UpsertRepository[Customer]
	FindByPhoneNumber(ctx context.Context, phone string) (*Customer, error)
}

// SyncRunRepository keeps the summaries of finished runs
type SyncRunRepository interface {
	Save(ctx context.Context, run SyncRun) error
	ListRecent(ctx context.Context, limit int) ([]SyncRun, error)
}

// ---------------------------------------------------------------------------
// Remote ERP
// ---------------------------------------------------------------------------

// ERPCatalog reads master data collections page by page.
// An empty nextLink requests the first page.
type ERPCatalog interface {
	FetchItems(ctx context.Context, nextLink string) (*Page[Item], error)
	FetchPriceLists(ctx context.Context, nextLink string) (*Page[PriceList], error)
	FetchPriceListLines(ctx context.Context, nextLink string) (*Page[PriceListLine], error)
	FetchCustomers(ctx context.Context, nextLink string) (*Page[Customer], error)
	ListCompanies(ctx context.Context) ([]Company, error)
}

// TokenEndpoint speaks the OAuth 2.0 token and authorize protocols of the identity provider
type TokenEndpoint interface {
	AuthorizeURL(cred OAuthCredential, redirectURI, scope, state string) string
	ExchangeCode(ctx context.Context, cred OAuthCredential, code, redirectURI string) (*TokenResponse, error)
	Refresh(ctx context.Context, cred OAuthCredential, refreshToken string) (*TokenResponse, error)
	ClientCredentials(ctx context.Context, cred OAuthCredential, scope string) (*TokenResponse, error)
}

// TokenClaims are the fields read from an access token without verifying it
type TokenClaims struct {
	TenantID  string
	ExpiresAt time.Time
}

// TokenInspector reads claims from an access token
type TokenInspector interface {
	Inspect(accessToken string) (*TokenClaims, error)
}

// AccessTokenSource hands out a currently valid access token
type AccessTokenSource interface {
	GetAccessToken(ctx context.Context) (string, error)
}
