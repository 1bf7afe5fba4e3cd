package integration

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/shared"
)

// memoryRepository is an in-memory UpsertRepository keyed by external id
type memoryRepository[T any] struct {
	mu        sync.Mutex
	rows      map[string]T
	key       func(*T) string
	id        func(*T) uuid.UUID
	assignID  func(*T, uuid.UUID)
	createErr map[string]error
	findErr   error
	creates   int
	updates   int
}

func newMemoryRepository[T any](key func(*T) string, id func(*T) uuid.UUID, assignID func(*T, uuid.UUID)) *memoryRepository[T] {
	return &memoryRepository[T]{
		rows:      make(map[string]T),
		key:       key,
		id:        id,
		assignID:  assignID,
		createErr: make(map[string]error),
	}
}

func (r *memoryRepository[T]) FindByExternalID(_ context.Context, externalID string) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	row, ok := r.rows[externalID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &row, nil
}

func (r *memoryRepository[T]) Create(_ context.Context, entity *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.key(entity)
	if err := r.createErr[key]; err != nil {
		return err
	}
	if _, exists := r.rows[key]; exists {
		return errors.New("duplicate key value violates unique constraint")
	}
	if r.assignID != nil && r.id(entity) == uuid.Nil {
		r.assignID(entity, uuid.New())
	}
	r.rows[key] = *entity
	r.creates++
	return nil
}

func (r *memoryRepository[T]) Update(_ context.Context, entity *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.key(entity)
	if _, ok := r.rows[key]; !ok {
		return shared.ErrNotFound
	}
	r.rows[key] = *entity
	r.updates++
	return nil
}

func (r *memoryRepository[T]) get(externalID string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[externalID]
	return row, ok
}

func (r *memoryRepository[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func newItemRepository() *memoryRepository[integration.Item] {
	return newMemoryRepository(
		func(i *integration.Item) string { return i.ExternalID },
		func(i *integration.Item) uuid.UUID { return i.ID },
		func(i *integration.Item, id uuid.UUID) { i.ID = id },
	)
}

func newPriceListRepository() *memoryRepository[integration.PriceList] {
	return newMemoryRepository(
		func(p *integration.PriceList) string { return p.ExternalID },
		func(p *integration.PriceList) uuid.UUID { return p.ID },
		func(p *integration.PriceList, id uuid.UUID) { p.ID = id },
	)
}

func newPriceListLineRepository() *memoryRepository[integration.PriceListLine] {
	return newMemoryRepository(
		func(l *integration.PriceListLine) string { return l.ExternalID },
		func(l *integration.PriceListLine) uuid.UUID { return l.ID },
		func(l *integration.PriceListLine, id uuid.UUID) { l.ID = id },
	)
}

type memoryCustomerRepository struct {
	*memoryRepository[integration.Customer]
}

func newCustomerRepository() *memoryCustomerRepository {
	return &memoryCustomerRepository{newMemoryRepository(
		func(c *integration.Customer) string { return c.ExternalID },
		func(c *integration.Customer) uuid.UUID { return c.ID },
		func(c *integration.Customer, id uuid.UUID) { c.ID = id },
	)}
}

func (r *memoryCustomerRepository) FindByPhoneNumber(_ context.Context, phone string) (*integration.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.PhoneNumber == phone {
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

type memoryRunRepository struct {
	mu   sync.Mutex
	runs []integration.SyncRun
}

func (r *memoryRunRepository) Save(_ context.Context, run integration.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *memoryRunRepository) ListRecent(_ context.Context, limit int) ([]integration.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]integration.SyncRun, 0, limit)
	for i := len(r.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.runs[i])
	}
	return out, nil
}

func (r *memoryRunRepository) families() []integration.EntityFamily {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]integration.EntityFamily, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run.Family)
	}
	return out
}

// MockERPCatalog is a mock implementation of ERPCatalog
type MockERPCatalog struct {
	mock.Mock
}

func (m *MockERPCatalog) FetchItems(ctx context.Context, nextLink string) (*integration.Page[integration.Item], error) {
	args := m.Called(ctx, nextLink)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Page[integration.Item]), args.Error(1)
}

func (m *MockERPCatalog) FetchPriceLists(ctx context.Context, nextLink string) (*integration.Page[integration.PriceList], error) {
	args := m.Called(ctx, nextLink)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Page[integration.PriceList]), args.Error(1)
}

func (m *MockERPCatalog) FetchPriceListLines(ctx context.Context, nextLink string) (*integration.Page[integration.PriceListLine], error) {
	args := m.Called(ctx, nextLink)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Page[integration.PriceListLine]), args.Error(1)
}

func (m *MockERPCatalog) FetchCustomers(ctx context.Context, nextLink string) (*integration.Page[integration.Customer], error) {
	args := m.Called(ctx, nextLink)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Page[integration.Customer]), args.Error(1)
}

func (m *MockERPCatalog) ListCompanies(ctx context.Context) ([]integration.Company, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Company), args.Error(1)
}

// ---------------------------------------------------------------------------
// Entity builders
// ---------------------------------------------------------------------------

func item(externalID, number, name string) integration.Item {
	return integration.Item{
		ExternalID:  externalID,
		Number:      number,
		DisplayName: name,
		UnitPrice:   decimal.NewFromInt(10),
	}
}

func itemRecords(items ...integration.Item) []integration.Record[integration.Item] {
	return integration.RecordsOf(items, func(i integration.Item) string { return i.ExternalID })
}

func priceList(externalID, code string) integration.PriceList {
	return integration.PriceList{ExternalID: externalID, Code: code, CurrencyCode: "EUR"}
}

func priceListLine(externalID, listID, itemID string, price int64) integration.PriceListLine {
	return integration.PriceListLine{
		ExternalID:          externalID,
		PriceListExternalID: listID,
		ItemExternalID:      itemID,
		MinimumQuantity:     decimal.NewFromInt(1),
		UnitPrice:           decimal.NewFromInt(price),
	}
}

func customer(externalID, number, phone string) integration.Customer {
	return integration.Customer{ExternalID: externalID, Number: number, DisplayName: "Customer " + number, PhoneNumber: phone}
}
