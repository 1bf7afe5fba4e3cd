package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/logger"
	"github.com/erp/bcsync/internal/infrastructure/telemetry"
)

const (
	// DefaultRunLockTTL bounds how long a crashed run can block the next one
	DefaultRunLockTTL = 30 * time.Minute
	// DefaultRecentRuns is the number of run summaries listed when no limit is given
	DefaultRecentRuns = 20

	runLockPrefix = "erp:sync:"
)

// ErrPaginationStalled indicates the ERP returned the continuation it was asked for
var ErrPaginationStalled = errors.New("integration: pagination did not advance")

// SyncRepositories are the local stores a sync writes to
type SyncRepositories struct {
	Items          integration.ItemRepository
	PriceLists     integration.PriceListRepository
	PriceListLines integration.PriceListLineRepository
	Customers      integration.CustomerRepository
	Runs           integration.SyncRunRepository
}

// SyncServiceConfig holds sync tuning
type SyncServiceConfig struct {
	MaxErrorEntries int
	RunLockTTL      time.Duration
}

// SyncServiceOption configures a SyncService
type SyncServiceOption func(*SyncService)

// WithSyncClock replaces time.Now for last_sync stamps
func WithSyncClock(now func() time.Time) SyncServiceOption {
	return func(s *SyncService) { s.now = now }
}

// WithSyncEvents publishes a completion event per run
func WithSyncEvents(events shared.EventPublisher) SyncServiceOption {
	return func(s *SyncService) { s.events = events }
}

// WithSyncMetrics records run counters
func WithSyncMetrics(metrics *telemetry.SyncMetrics) SyncServiceOption {
	return func(s *SyncService) { s.metrics = metrics }
}

// SyncService pulls ERP collections page by page and reconciles them into local storage
type SyncService struct {
	catalog integration.ERPCatalog
	repos   SyncRepositories
	lock    shared.RunLock
	events  shared.EventPublisher
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
	config  SyncServiceConfig
	now     func() time.Time
}

// NewSyncService creates a SyncService
func NewSyncService(
	catalog integration.ERPCatalog,
	repos SyncRepositories,
	lock shared.RunLock,
	config SyncServiceConfig,
	logger *zap.Logger,
	opts ...SyncServiceOption,
) *SyncService {
	if config.MaxErrorEntries <= 0 {
		config.MaxErrorEntries = integration.DefaultMaxErrorEntries
	}
	if config.RunLockTTL <= 0 {
		config.RunLockTTL = DefaultRunLockTTL
	}
	s := &SyncService{
		catalog: catalog,
		repos:   repos,
		lock:    lock,
		logger:  logger,
		config:  config,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run synchronizes one family. When a page cannot be fetched the run stops and the partial
// result is returned together with the error; entities already written stay written.
func (s *SyncService) Run(ctx context.Context, family integration.EntityFamily) (*integration.SyncRunResult, error) {
	if !family.IsValid() {
		return nil, fmt.Errorf("%w: %q", integration.ErrUnknownFamily, family)
	}

	key := runLockPrefix + family.String()
	acquired, err := s.lock.Acquire(ctx, key, s.config.RunLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		return nil, integration.ErrSyncInProgress
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn("Failed to release run lock", zap.String("family", family.String()), zap.Error(err))
		}
	}()

	var (
		result *integration.SyncRunResult
		runErr error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.SyncLabels(family.String()), func(ctx context.Context) {
		result, runErr = s.run(ctx, family)
	})
	return result, runErr
}

// RunAll synchronizes every family in dependency order. A failing family is reported
// and the remaining ones still run.
func (s *SyncService) RunAll(ctx context.Context) ([]*integration.SyncRunResult, error) {
	results := make([]*integration.SyncRunResult, 0, len(integration.AllFamilies()))
	var errs []error
	for _, family := range integration.AllFamilies() {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		result, err := s.Run(ctx, family)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", family, err))
		}
	}
	return results, errors.Join(errs...)
}

// RecentRuns lists the latest run summaries, newest first
func (s *SyncService) RecentRuns(ctx context.Context, limit int) ([]integration.SyncRun, error) {
	if limit <= 0 {
		limit = DefaultRecentRuns
	}
	return s.repos.Runs.ListRecent(ctx, limit)
}

func (s *SyncService) run(ctx context.Context, family integration.EntityFamily) (*integration.SyncRunResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "SyncService", "Run",
		telemetry.WithAttribute(telemetry.SpanAttrFamily, family.String()))
	defer span.End()
	ctx = logger.WithSyncRun(ctx, family.String())
	log := logger.For(ctx, s.logger)

	log.Info("Sync started")
	result := integration.NewSyncRunResult(family, s.config.MaxErrorEntries)

	var err error
	switch family {
	case integration.FamilyItems:
		err = syncPages(ctx, result, s.catalog.FetchItems,
			NewReconciler[integration.Item](family, s.repos.Items, s.config.MaxErrorEntries, s.now, log))
	case integration.FamilyPriceLists:
		err = syncPages(ctx, result, s.catalog.FetchPriceLists,
			NewReconciler[integration.PriceList](family, s.repos.PriceLists, s.config.MaxErrorEntries, s.now, log))
	case integration.FamilyPriceListLines:
		refs := newLineReferences(s.repos.PriceLists, s.repos.Items)
		err = syncPages(ctx, result, s.catalog.FetchPriceListLines,
			NewReconciler[integration.PriceListLine](family, s.repos.PriceListLines, s.config.MaxErrorEntries, s.now, log,
				WithResolver[integration.PriceListLine, *integration.PriceListLine](refs.Resolve)))
	case integration.FamilyCustomers:
		err = syncPages(ctx, result, s.catalog.FetchCustomers,
			NewReconciler[integration.Customer](family, s.repos.Customers, s.config.MaxErrorEntries, s.now, log))
	}
	if err == nil {
		err = ctx.Err()
	}
	result.Finish()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPage, result.Pages,
		telemetry.SpanAttrCreated, result.Created,
		telemetry.SpanAttrUpdated, result.Updated,
		telemetry.SpanAttrErrors, result.Errors,
	)
	s.metrics.RecordSyncRun(ctx, family.String(), result.Created, result.Updated, result.Errors, result.Duration())
	s.record(ctx, result, err)

	fields := []zap.Field{
		zap.Int("pages", result.Pages),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", result.Duration()),
	}
	if err != nil {
		telemetry.RecordError(span, err)
		log.Warn("Sync aborted", append(fields, zap.Error(err))...)
		return result, err
	}

	telemetry.SetOK(span)
	log.Info("Sync completed", fields...)
	if s.events != nil {
		if err := s.events.Publish(ctx, integration.NewSyncCompletedEvent(result)); err != nil {
			log.Warn("Failed to publish event", zap.String("event_type", integration.EventTypeSyncCompleted), zap.Error(err))
		}
	}
	return result, nil
}

// record appends the run to the sync-run log; a failure here does not fail the run
func (s *SyncService) record(ctx context.Context, result *integration.SyncRunResult, runErr error) {
	if s.repos.Runs == nil {
		return
	}
	summary := result.Summary()
	if runErr != nil {
		summary.Aborted = runErr.Error()
	}
	if err := s.repos.Runs.Save(context.WithoutCancel(ctx), summary); err != nil {
		s.logger.Warn("Failed to record sync run", zap.String("family", result.Family.String()), zap.Error(err))
	}
}

// syncPages follows continuation links until the last page, feeding each page to the reconciler
func syncPages[T any, PT syncable[T]](
	ctx context.Context,
	result *integration.SyncRunResult,
	fetch func(ctx context.Context, nextLink string) (*integration.Page[T], error),
	reconciler *Reconciler[T, PT],
) error {
	next := ""
	for {
		page, err := fetch(ctx, next)
		if err != nil {
			return fmt.Errorf("page %d: %w", result.Pages+1, err)
		}
		result.RecordPage()
		result.Merge(reconciler.SyncCollection(ctx, page.Records))

		if !page.HasMore() || ctx.Err() != nil {
			return nil
		}
		if page.NextLink == next {
			return ErrPaginationStalled
		}
		next = page.NextLink
	}
}
