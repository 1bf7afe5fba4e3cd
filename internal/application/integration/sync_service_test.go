package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/cache"
)

type syncFixture struct {
	catalog   *MockERPCatalog
	items     *memoryRepository[integration.Item]
	lists     *memoryRepository[integration.PriceList]
	lines     *memoryRepository[integration.PriceListLine]
	customers *memoryCustomerRepository
	runs      *memoryRunRepository
	lock      *cache.InMemoryRunLock
	events    *recordingPublisher
	service   *SyncService
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		catalog:   new(MockERPCatalog),
		items:     newItemRepository(),
		lists:     newPriceListRepository(),
		lines:     newPriceListLineRepository(),
		customers: newCustomerRepository(),
		runs:      &memoryRunRepository{},
		lock:      cache.NewInMemoryRunLock(),
		events:    &recordingPublisher{},
	}
	f.service = NewSyncService(f.catalog, SyncRepositories{
		Items:          f.items,
		PriceLists:     f.lists,
		PriceListLines: f.lines,
		Customers:      f.customers,
		Runs:           f.runs,
	}, f.lock, SyncServiceConfig{}, zap.NewNop(),
		WithSyncClock(func() time.Time { return testNow }),
		WithSyncEvents(f.events),
	)
	return f
}

func itemPage(next string, items ...integration.Item) *integration.Page[integration.Item] {
	return &integration.Page[integration.Item]{Records: itemRecords(items...), NextLink: next}
}

func TestSyncService_Run_FollowsPagination(t *testing.T) {
	f := newSyncFixture(t)
	f.catalog.On("FetchItems", mock.Anything, "").Return(itemPage("https://bc.example.com/items?$skiptoken=2",
		item("a-1", "1000", "Bicycle"), item("a-2", "1001", "Helmet")), nil).Once()
	f.catalog.On("FetchItems", mock.Anything, "https://bc.example.com/items?$skiptoken=2").Return(itemPage("",
		item("a-3", "1002", "Lamp")), nil).Once()

	result, err := f.service.Run(context.Background(), integration.FamilyItems)
	require.NoError(t, err)

	assert.Equal(t, integration.FamilyItems, result.Family)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 3, f.items.count())
	assert.False(t, result.FinishedAt.IsZero())
	f.catalog.AssertExpectations(t)

	require.Len(t, f.runs.runs, 1)
	assert.Equal(t, 3, f.runs.runs[0].Created)
	assert.Empty(t, f.runs.runs[0].Aborted)
	assert.Equal(t, []string{integration.EventTypeSyncCompleted}, f.events.types())
	assert.False(t, f.lock.Held(runLockPrefix+"items"))
}

func TestSyncService_Run_IsIdempotent(t *testing.T) {
	f := newSyncFixture(t)
	f.catalog.On("FetchItems", mock.Anything, "").Return(itemPage("", item("a-1", "1000", "Bicycle"), item("a-2", "1001", "Helmet")), nil)

	_, err := f.service.Run(context.Background(), integration.FamilyItems)
	require.NoError(t, err)
	result, err := f.service.Run(context.Background(), integration.FamilyItems)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 2, f.items.count())
}

func TestSyncService_Run_PageFailureReturnsPartialResult(t *testing.T) {
	f := newSyncFixture(t)
	upstream := shared.NewHTTPError(503, []byte("busy"))
	f.catalog.On("FetchItems", mock.Anything, "").Return(itemPage("next", item("a-1", "1000", "Bicycle")), nil).Once()
	f.catalog.On("FetchItems", mock.Anything, "next").Return(nil, upstream).Once()

	result, err := f.service.Run(context.Background(), integration.FamilyItems)

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrHTTPFailure)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, f.items.count(), "entities written before the failure stay")

	require.Len(t, f.runs.runs, 1)
	assert.Contains(t, f.runs.runs[0].Aborted, "page 2")
	assert.Empty(t, f.events.types())
}

func TestSyncService_Run_StalledPagination(t *testing.T) {
	f := newSyncFixture(t)
	f.catalog.On("FetchItems", mock.Anything, "").Return(itemPage("loop"), nil).Once()
	f.catalog.On("FetchItems", mock.Anything, "loop").Return(itemPage("loop"), nil).Once()

	_, err := f.service.Run(context.Background(), integration.FamilyItems)
	assert.ErrorIs(t, err, ErrPaginationStalled)
}

func TestSyncService_Run_Rejections(t *testing.T) {
	t.Run("unknown family", func(t *testing.T) {
		f := newSyncFixture(t)
		_, err := f.service.Run(context.Background(), integration.EntityFamily("vendors"))
		assert.ErrorIs(t, err, integration.ErrUnknownFamily)
	})

	t.Run("run in progress", func(t *testing.T) {
		f := newSyncFixture(t)
		acquired, err := f.lock.Acquire(context.Background(), runLockPrefix+"customers", time.Minute)
		require.NoError(t, err)
		require.True(t, acquired)

		_, err = f.service.Run(context.Background(), integration.FamilyCustomers)
		assert.ErrorIs(t, err, integration.ErrSyncInProgress)
		f.catalog.AssertNotCalled(t, "FetchCustomers", mock.Anything, mock.Anything)
	})

	t.Run("not authenticated", func(t *testing.T) {
		f := newSyncFixture(t)
		f.catalog.On("FetchCustomers", mock.Anything, "").
			Return(nil, errors.Join(integration.ErrUnauthenticated, integration.ErrNotAuthenticated))

		_, err := f.service.Run(context.Background(), integration.FamilyCustomers)
		assert.ErrorIs(t, err, integration.ErrUnauthenticated)
		assert.Equal(t, 0, f.customers.count())
	})
}

func TestSyncService_RunAll_DependencyOrder(t *testing.T) {
	f := newSyncFixture(t)
	f.catalog.On("FetchItems", mock.Anything, "").Return(itemPage("", item("item-1", "1000", "Bicycle")), nil)
	f.catalog.On("FetchPriceLists", mock.Anything, "").Return(&integration.Page[integration.PriceList]{
		Records: integration.RecordsOf([]integration.PriceList{priceList("list-1", "RETAIL")},
			func(p integration.PriceList) string { return p.ExternalID }),
	}, nil)
	f.catalog.On("FetchPriceListLines", mock.Anything, "").Return(&integration.Page[integration.PriceListLine]{
		Records: integration.RecordsOf([]integration.PriceListLine{
			priceListLine("line-1", "list-1", "item-1", 12),
			priceListLine("line-2", "list-1", "item-2", 20),
		}, func(l integration.PriceListLine) string { return l.ExternalID }),
	}, nil)
	f.catalog.On("FetchCustomers", mock.Anything, "").Return(&integration.Page[integration.Customer]{
		Records: integration.RecordsOf([]integration.Customer{customer("cust-1", "C0001", "+37060000000")},
			func(c integration.Customer) string { return c.ExternalID }),
	}, nil)

	results, err := f.service.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, integration.AllFamilies(), f.runs.families())
	lines := results[2]
	assert.Equal(t, 1, lines.Created)
	assert.Equal(t, 1, lines.Errors)
	assert.Equal(t, "line-2", lines.ErrorsList[0].Key)

	stored, ok := f.lines.get("line-1")
	require.True(t, ok)
	bike, _ := f.items.get("item-1")
	assert.Equal(t, bike.ID, stored.ItemID)
}

func TestSyncService_RunAll_ContinuesAfterFamilyFailure(t *testing.T) {
	f := newSyncFixture(t)
	f.catalog.On("FetchItems", mock.Anything, "").Return(nil, errors.New("dial tcp: connection refused"))
	f.catalog.On("FetchPriceLists", mock.Anything, "").Return(&integration.Page[integration.PriceList]{}, nil)
	f.catalog.On("FetchPriceListLines", mock.Anything, "").Return(&integration.Page[integration.PriceListLine]{}, nil)
	f.catalog.On("FetchCustomers", mock.Anything, "").Return(&integration.Page[integration.Customer]{}, nil)

	results, err := f.service.RunAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "items")
	assert.Len(t, results, 4)
	f.catalog.AssertExpectations(t)
}

func TestSyncService_RecentRuns(t *testing.T) {
	f := newSyncFixture(t)
	for _, family := range integration.AllFamilies() {
		require.NoError(t, f.runs.Save(context.Background(), integration.SyncRun{Family: family}))
	}

	runs, err := f.service.RecentRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, integration.FamilyCustomers, runs[0].Family)

	runs, err = f.service.RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 4)
}
