package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
)

// SyncRunner runs the reconciliation of one family
type SyncRunner interface {
	Run(ctx context.Context, family integration.EntityFamily) (*integration.SyncRunResult, error)
}

// SyncTriggerConfig holds configuration for the sync trigger
type SyncTriggerConfig struct {
	// Interval between two scheduled runs
	Interval time.Duration

	// Families to run, in order; empty runs every family in dependency order
	Families []integration.EntityFamily

	// JobTimeout bounds one scheduled pass over all families
	JobTimeout time.Duration

	// RunOnStart triggers a pass immediately instead of waiting one interval
	RunOnStart bool
}

// DefaultSyncTriggerConfig returns default sync trigger configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		Interval:   time.Hour,
		JobTimeout: 30 * time.Minute,
	}
}

// Validate checks the configuration and fills the family list
func (c *SyncTriggerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = c.Interval
	}
	if len(c.Families) == 0 {
		c.Families = integration.AllFamilies()
	}
	for _, f := range c.Families {
		if !f.IsValid() {
			return fmt.Errorf("%w: unknown family %q", ErrInvalidConfig, f)
		}
	}
	return nil
}

// ParseFamilies converts configured family names
func ParseFamilies(names []string) ([]integration.EntityFamily, error) {
	families := make([]integration.EntityFamily, 0, len(names))
	for _, name := range names {
		f := integration.EntityFamily(name)
		if !f.IsValid() {
			return nil, fmt.Errorf("%w: unknown family %q", ErrInvalidConfig, name)
		}
		families = append(families, f)
	}
	return families, nil
}

// SyncTrigger runs the configured families on a fixed interval
type SyncTrigger struct {
	config SyncTriggerConfig
	runner SyncRunner
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   time.Time
}

// NewSyncTrigger creates a new sync trigger
func NewSyncTrigger(config SyncTriggerConfig, runner SyncRunner, logger *zap.Logger) (*SyncTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SyncTrigger{
		config: config,
		runner: runner,
		logger: logger,
	}, nil
}

// Start starts the trigger loop
func (t *SyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return ErrAlreadyRunning
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Sync trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Int("families", len(t.config.Families)),
	)
	return nil
}

// Stop stops the loop and waits for a pass in progress, or until ctx ends
func (t *SyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastRun returns when the last pass started; zero if none did
func (t *SyncTrigger) LastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *SyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.RunOnce(ctx)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.RunOnce(ctx)
		}
	}
}

// RunOnce runs every configured family once. Failures are logged and the next family still runs.
func (t *SyncTrigger) RunOnce(ctx context.Context) {
	t.mu.Lock()
	t.lastRun = time.Now()
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, t.config.JobTimeout)
	defer cancel()

	for _, family := range t.config.Families {
		if ctx.Err() != nil {
			t.logger.Warn("Scheduled sync pass cut short", zap.Error(ctx.Err()))
			return
		}
		result, err := t.runner.Run(ctx, family)
		switch {
		case errors.Is(err, integration.ErrSyncInProgress):
			t.logger.Info("Scheduled sync skipped, run in progress", zap.String("family", family.String()))
		case errors.Is(err, integration.ErrUnauthenticated), errors.Is(err, integration.ErrNotAuthenticated):
			t.logger.Warn("Scheduled sync skipped, not connected to Business Central")
			return
		case err != nil:
			t.logger.Error("Scheduled sync failed", zap.String("family", family.String()), zap.Error(err))
		default:
			t.logger.Info("Scheduled sync finished",
				zap.String("family", family.String()),
				zap.Int("created", result.Created),
				zap.Int("updated", result.Updated),
				zap.Int("errors", result.Errors),
			)
		}
	}
}
