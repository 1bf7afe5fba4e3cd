package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/shared"
)

// ErrNoIdentity indicates an insert returned without a local id
var ErrNoIdentity = errors.New("integration: insert did not yield a local id")

// syncable is a pointer to an entity that can be bound to a local row
type syncable[T any] interface {
	*T
	LocalID() uuid.UUID
	MarkSynced(id uuid.UUID, at time.Time)
}

// Reconciler upserts the entities of one family, matching local rows by external id only
type Reconciler[T any, PT syncable[T]] struct {
	family    integration.EntityFamily
	repo      integration.UpsertRepository[T]
	resolve   func(ctx context.Context, entity *T) error
	maxErrors int
	now       func() time.Time
	logger    *zap.Logger
}

// ReconcilerOption configures a Reconciler
type ReconcilerOption[T any, PT syncable[T]] func(*Reconciler[T, PT])

// WithResolver runs fn on every entity before lookup, typically to map external references to local ids
func WithResolver[T any, PT syncable[T]](fn func(ctx context.Context, entity *T) error) ReconcilerOption[T, PT] {
	return func(r *Reconciler[T, PT]) { r.resolve = fn }
}

// NewReconciler creates a Reconciler for one family. logger is expected to carry the family already.
func NewReconciler[T any, PT syncable[T]](
	family integration.EntityFamily,
	repo integration.UpsertRepository[T],
	maxErrors int,
	now func() time.Time,
	logger *zap.Logger,
	opts ...ReconcilerOption[T, PT],
) *Reconciler[T, PT] {
	if now == nil {
		now = time.Now
	}
	r := &Reconciler[T, PT]{
		family:    family,
		repo:      repo,
		maxErrors: maxErrors,
		now:       now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SyncCollection processes records in order. A failing record is counted and recorded
// under its key and never stops the loop; only context cancellation does.
// Running it twice over the same input creates nothing the second time.
func (r *Reconciler[T, PT]) SyncCollection(ctx context.Context, records []integration.Record[T]) *integration.SyncRunResult {
	result := integration.NewSyncRunResult(r.family, r.maxErrors)
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		record := &records[i]
		if record.Err != nil {
			r.fail(result, record.Key, record.Err)
			continue
		}

		created, err := r.upsert(ctx, record.Key, &record.Value)
		switch {
		case err != nil:
			r.fail(result, record.Key, err)
		case created:
			result.RecordCreated()
		default:
			result.RecordUpdated()
		}
	}
	result.Finish()
	return result
}

func (r *Reconciler[T, PT]) upsert(ctx context.Context, key string, entity *T) (created bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while syncing %s: %v", key, p)
		}
	}()

	if r.resolve != nil {
		if err := r.resolve(ctx, entity); err != nil {
			return false, err
		}
	}

	now := r.now()
	existing, err := r.repo.FindByExternalID(ctx, key)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		PT(entity).MarkSynced(uuid.Nil, now)
		if err := r.repo.Create(ctx, entity); err != nil {
			return false, err
		}
		if PT(entity).LocalID() == uuid.Nil {
			return false, ErrNoIdentity
		}
		return true, nil
	case err != nil:
		return false, err
	}

	PT(entity).MarkSynced(PT(existing).LocalID(), now)
	return false, r.repo.Update(ctx, entity)
}

func (r *Reconciler[T, PT]) fail(result *integration.SyncRunResult, key string, err error) {
	result.RecordError(key, err)
	r.logger.Debug("Entity sync failed",
		zap.String("key", key),
		zap.Error(err),
	)
}

// ---------------------------------------------------------------------------
// Price list line references
// ---------------------------------------------------------------------------

// lineReferences maps the external parent ids of price list lines to local ids, caching hits per run
type lineReferences struct {
	priceLists integration.PriceListRepository
	items      integration.ItemRepository
	listIDs    map[string]uuid.UUID
	itemIDs    map[string]uuid.UUID
}

func newLineReferences(priceLists integration.PriceListRepository, items integration.ItemRepository) *lineReferences {
	return &lineReferences{
		priceLists: priceLists,
		items:      items,
		listIDs:    make(map[string]uuid.UUID),
		itemIDs:    make(map[string]uuid.UUID),
	}
}

// Resolve fills PriceListID and ItemID; an unknown reference fails only this line
func (r *lineReferences) Resolve(ctx context.Context, line *integration.PriceListLine) error {
	listID, err := lookup(ctx, r.listIDs, line.PriceListExternalID, "price list", r.priceLists.FindByExternalID,
		func(p *integration.PriceList) uuid.UUID { return p.ID })
	if err != nil {
		return err
	}
	itemID, err := lookup(ctx, r.itemIDs, line.ItemExternalID, "item", r.items.FindByExternalID,
		func(i *integration.Item) uuid.UUID { return i.ID })
	if err != nil {
		return err
	}
	line.PriceListID = listID
	line.ItemID = itemID
	return nil
}

func lookup[T any](
	ctx context.Context,
	cache map[string]uuid.UUID,
	externalID, kind string,
	find func(context.Context, string) (*T, error),
	id func(*T) uuid.UUID,
) (uuid.UUID, error) {
	if externalID == "" {
		return uuid.Nil, &integration.NotFoundError{Kind: kind}
	}
	if cached, ok := cache[externalID]; ok {
		return cached, nil
	}
	entity, err := find(ctx, externalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return uuid.Nil, &integration.NotFoundError{Kind: kind, ExternalID: externalID}
		}
		return uuid.Nil, err
	}
	cache[externalID] = id(entity)
	return cache[externalID], nil
}
