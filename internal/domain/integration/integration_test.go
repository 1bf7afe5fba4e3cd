package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Credential Tests
// ---------------------------------------------------------------------------

type mapSettings map[string]string

func (m mapSettings) Get(_ context.Context, key string) (string, error) { return m[key], nil }
func (m mapSettings) Set(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

func TestOAuthCredential_Complete(t *testing.T) {
	tests := []struct {
		name     string
		cred     OAuthCredential
		expected bool
	}{
		{"complete", OAuthCredential{ClientID: "id", ClientSecret: "secret"}, true},
		{"missing id", OAuthCredential{ClientSecret: "secret"}, false},
		{"missing secret", OAuthCredential{ClientID: "id"}, false},
		{"blank secret", OAuthCredential{ClientID: "id", ClientSecret: "   "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cred.Complete())
		})
	}
}

func TestOAuthCredential_Validate(t *testing.T) {
	t.Run("accepts guid and long secret", func(t *testing.T) {
		cred := OAuthCredential{
			ClientID:     "3f2504e0-4f89-11d3-9a0c-0305e82c3301",
			ClientSecret: "0123456789abcdef",
		}
		assert.NoError(t, cred.Validate())
	})

	t.Run("rejects non guid client id", func(t *testing.T) {
		cred := OAuthCredential{ClientID: "not-a-guid", ClientSecret: "0123456789abcdef"}
		err := cred.Validate()
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects short secret", func(t *testing.T) {
		cred := OAuthCredential{ClientID: "3f2504e0-4f89-11d3-9a0c-0305e82c3301", ClientSecret: "short"}
		assert.ErrorIs(t, cred.Validate(), ErrValidation)
	})
}

func TestOAuthCredential_Tenant(t *testing.T) {
	assert.Equal(t, "common", OAuthCredential{}.Tenant())
	assert.Equal(t, "contoso", OAuthCredential{TenantID: "contoso"}.Tenant())
}

func TestLoadCredential(t *testing.T) {
	settings := mapSettings{
		SettingClientID:     " client ",
		SettingClientSecret: "secret",
	}

	cred, err := LoadCredential(context.Background(), settings)

	require.NoError(t, err)
	assert.Equal(t, "client", cred.ClientID)
	assert.Equal(t, "secret", cred.ClientSecret)
	assert.Equal(t, "common", cred.Tenant())
}

func TestLoadAPIEndpoint(t *testing.T) {
	settings := mapSettings{
		SettingAPIURL:    "https://api.businesscentral.dynamics.com/v2.0/t/prod/api/v2.0/",
		SettingCompanyID: "c1",
	}

	endpoint, err := LoadAPIEndpoint(context.Background(), settings)

	require.NoError(t, err)
	assert.True(t, endpoint.Configured())
	assert.Equal(t, "https://api.businesscentral.dynamics.com/v2.0/t/prod/api/v2.0", endpoint.BaseURL)
	assert.False(t, APIEndpoint{BaseURL: "x"}.Configured())
}

// ---------------------------------------------------------------------------
// Token Tests
// ---------------------------------------------------------------------------

func TestTokenState_NeedsRefresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	skew := 300 * time.Second

	tests := []struct {
		name      string
		expiresAt time.Time
		expected  bool
	}{
		{"well before expiry", now.Add(time.Hour), false},
		{"exactly at skew boundary", now.Add(skew), false},
		{"inside skew window", now.Add(skew - time.Second), true},
		{"already expired", now.Add(-time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &TokenState{AccessToken: "AT", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.expected, state.NeedsRefresh(now, skew))
		})
	}
}

func TestTokenState_Validate(t *testing.T) {
	assert.NoError(t, (&TokenState{}).Validate())
	assert.NoError(t, (&TokenState{AccessToken: "AT", ExpiresAt: time.Now()}).Validate())
	assert.ErrorIs(t, (&TokenState{AccessToken: "AT"}).Validate(), ErrCorruptTokenState)
}

func TestTokenState_IsEmpty(t *testing.T) {
	var nilState *TokenState
	assert.True(t, nilState.IsEmpty())
	assert.True(t, (&TokenState{RefreshToken: "RT"}).IsEmpty())
	assert.False(t, (&TokenState{AccessToken: "AT"}).IsEmpty())
}

func TestOAuthState(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	state := &OAuthState{Value: "abc123", CreatedAt: created}

	t.Run("matches exact value only", func(t *testing.T) {
		assert.True(t, state.Matches("abc123"))
		assert.False(t, state.Matches("ABC123"))
		assert.False(t, state.Matches("abc1234"))
		assert.False(t, state.Matches(""))
	})

	t.Run("expires after ttl", func(t *testing.T) {
		ttl := 600 * time.Second
		assert.False(t, state.Expired(created.Add(ttl), ttl))
		assert.True(t, state.Expired(created.Add(ttl+time.Second), ttl))
	})
}

func TestConnectionStatus_IsValid(t *testing.T) {
	assert.True(t, ConnectionStatusAuthenticated.IsValid())
	assert.True(t, ConnectionStatusAwaitingCallback.IsValid())
	assert.False(t, ConnectionStatus("connected").IsValid())
}

// ---------------------------------------------------------------------------
// Error Tests
// ---------------------------------------------------------------------------

func TestProviderDeniedError(t *testing.T) {
	err := &ProviderDeniedError{Code: "access_denied", Description: "user cancelled"}

	assert.ErrorIs(t, err, ErrProviderDenied)
	assert.Contains(t, err.Error(), "access_denied")
	assert.Contains(t, err.Error(), "user cancelled")
}

func TestNotFoundError(t *testing.T) {
	var err error = &NotFoundError{Kind: "item", ExternalID: "I-1"}
	wrapped := fmt.Errorf("line L1: %w", err)

	assert.ErrorIs(t, wrapped, ErrNotFound)
	var nf *NotFoundError
	require.True(t, errors.As(wrapped, &nf))
	assert.Equal(t, "I-1", nf.ExternalID)
}

// ---------------------------------------------------------------------------
// Entity Family Tests
// ---------------------------------------------------------------------------

func TestEntityFamily(t *testing.T) {
	families := AllFamilies()
	require.Len(t, families, 4)
	assert.Equal(t, FamilyItems, families[0])
	assert.Equal(t, FamilyPriceListLines, families[2])
	for _, f := range families {
		assert.True(t, f.IsValid())
	}
	assert.False(t, EntityFamily("orders").IsValid())
}

func TestRecordsOf(t *testing.T) {
	items := []Item{{ExternalID: "A"}, {ExternalID: "B"}}

	records := RecordsOf(items, func(i Item) string { return i.ExternalID })

	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].Key)
	assert.Equal(t, "B", records[1].Value.ExternalID)
	assert.NoError(t, records[1].Err)
}

// ---------------------------------------------------------------------------
// SyncRunResult Tests
// ---------------------------------------------------------------------------

func TestSyncRunResult_Counters(t *testing.T) {
	result := NewSyncRunResult(FamilyItems, 0)

	result.RecordCreated()
	result.RecordUpdated()
	result.RecordUpdated()
	result.RecordError("X1", errors.New("boom"))

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 4, result.Processed())
	require.Len(t, result.ErrorsList, 1)
	assert.Equal(t, SyncFailure{Key: "X1", Message: "boom"}, result.ErrorsList[0])
}

func TestSyncRunResult_ErrorListIsBounded(t *testing.T) {
	result := NewSyncRunResult(FamilyCustomers, 3)

	for i := 0; i < 10; i++ {
		result.RecordError(fmt.Sprintf("C%d", i), errors.New("bad"))
	}

	assert.Equal(t, 10, result.Errors)
	assert.Len(t, result.ErrorsList, 3)
}

func TestSyncRunResult_Merge(t *testing.T) {
	total := NewSyncRunResult(FamilyItems, 0)
	page1 := NewSyncRunResult(FamilyItems, 0)
	page1.RecordCreated()
	page1.RecordPage()
	page2 := NewSyncRunResult(FamilyItems, 0)
	page2.RecordUpdated()
	page2.RecordError("X9", errors.New("bad"))
	page2.RecordPage()

	total.Merge(page1)
	total.Merge(page2)
	total.Merge(nil)

	assert.Equal(t, 1, total.Created)
	assert.Equal(t, 1, total.Updated)
	assert.Equal(t, 1, total.Errors)
	assert.Equal(t, 2, total.Pages)
	assert.Equal(t, "X9", total.ErrorsList[0].Key)
}

func TestSyncRunResult_ConcurrentUpdates(t *testing.T) {
	result := NewSyncRunResult(FamilyItems, 0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.RecordCreated()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, result.Created)
}

func TestSyncRunResult_Summary(t *testing.T) {
	result := NewSyncRunResult(FamilyPriceLists, 0)
	result.RecordCreated()
	result.Finish()

	summary := result.Summary()

	assert.Equal(t, FamilyPriceLists, summary.Family)
	assert.Equal(t, 1, summary.Created)
	assert.False(t, summary.FinishedAt.IsZero())
	assert.GreaterOrEqual(t, result.Duration(), time.Duration(0))
}

func TestNewSyncCompletedEvent(t *testing.T) {
	result := NewSyncRunResult(FamilyItems, 0)
	result.RecordUpdated()

	event := NewSyncCompletedEvent(result)

	assert.Equal(t, EventTypeSyncCompleted, event.EventType())
	assert.Equal(t, "items", event.AggregateKey())
	assert.Equal(t, 1, event.Updated)
}
