package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/bcsync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

type recordingRunner struct {
	mu    sync.Mutex
	calls []integration.EntityFamily
	errs  map[integration.EntityFamily]error
	ran   chan struct{}
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{errs: map[integration.EntityFamily]error{}, ran: make(chan struct{}, 16)}
}

func (r *recordingRunner) Run(_ context.Context, family integration.EntityFamily) (*integration.SyncRunResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, family)
	err := r.errs[family]
	r.mu.Unlock()
	select {
	case r.ran <- struct{}{}:
	default:
	}
	if err != nil {
		return nil, err
	}
	return integration.NewSyncRunResult(family, 0), nil
}

func (r *recordingRunner) families() []integration.EntityFamily {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]integration.EntityFamily(nil), r.calls...)
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestSyncTriggerConfig_Validate(t *testing.T) {
	t.Run("defaults to all families", func(t *testing.T) {
		cfg := DefaultSyncTriggerConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, integration.AllFamilies(), cfg.Families)
	})

	t.Run("job timeout falls back to interval", func(t *testing.T) {
		cfg := SyncTriggerConfig{Interval: time.Minute}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, time.Minute, cfg.JobTimeout)
	})

	t.Run("rejects zero interval", func(t *testing.T) {
		cfg := SyncTriggerConfig{}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("rejects unknown family", func(t *testing.T) {
		cfg := SyncTriggerConfig{Interval: time.Minute, Families: []integration.EntityFamily{"vendors"}}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})
}

func TestParseFamilies(t *testing.T) {
	families, err := ParseFamilies([]string{"customers", "items"})
	require.NoError(t, err)
	assert.Equal(t, []integration.EntityFamily{integration.FamilyCustomers, integration.FamilyItems}, families)

	_, err = ParseFamilies([]string{"orders"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// ---------------------------------------------------------------------------
// RunOnce
// ---------------------------------------------------------------------------

func TestSyncTrigger_RunOnce_RunsFamiliesInOrder(t *testing.T) {
	runner := newRecordingRunner()
	runner.errs[integration.FamilyPriceLists] = errors.New("remote: http 500")
	trigger, err := NewSyncTrigger(DefaultSyncTriggerConfig(), runner, zap.NewNop())
	require.NoError(t, err)

	trigger.RunOnce(context.Background())

	assert.Equal(t, integration.AllFamilies(), runner.families())
	assert.False(t, trigger.LastRun().IsZero())
}

func TestSyncTrigger_RunOnce_StopsWhenNotConnected(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	runner := newRecordingRunner()
	runner.errs[integration.FamilyItems] = errors.Join(integration.ErrUnauthenticated, integration.ErrNotAuthenticated)
	trigger, err := NewSyncTrigger(DefaultSyncTriggerConfig(), runner, zap.New(core))
	require.NoError(t, err)

	trigger.RunOnce(context.Background())

	assert.Equal(t, []integration.EntityFamily{integration.FamilyItems}, runner.families())
	assert.Equal(t, 1, logs.FilterMessage("Scheduled sync skipped, not connected to Business Central").Len())
}

func TestSyncTrigger_RunOnce_SkipsFamilyInProgress(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	runner := newRecordingRunner()
	runner.errs[integration.FamilyItems] = integration.ErrSyncInProgress
	cfg := SyncTriggerConfig{Interval: time.Hour, Families: []integration.EntityFamily{integration.FamilyItems, integration.FamilyCustomers}}
	trigger, err := NewSyncTrigger(cfg, runner, zap.New(core))
	require.NoError(t, err)

	trigger.RunOnce(context.Background())

	assert.Len(t, runner.families(), 2)
	assert.Equal(t, 1, logs.FilterMessage("Scheduled sync skipped, run in progress").Len())
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestSyncTrigger_StartStop(t *testing.T) {
	runner := newRecordingRunner()
	cfg := SyncTriggerConfig{Interval: time.Hour, RunOnStart: true, Families: []integration.EntityFamily{integration.FamilyItems}}
	trigger, err := NewSyncTrigger(cfg, runner, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, trigger.Start(context.Background()))
	assert.ErrorIs(t, trigger.Start(context.Background()), ErrAlreadyRunning)

	select {
	case <-runner.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("run on start did not happen")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	require.NoError(t, trigger.Stop(ctx), "stopping twice is a no-op")
	assert.Equal(t, []integration.EntityFamily{integration.FamilyItems}, runner.families())
}

func TestSyncTrigger_TicksOnInterval(t *testing.T) {
	runner := newRecordingRunner()
	cfg := SyncTriggerConfig{Interval: 10 * time.Millisecond, Families: []integration.EntityFamily{integration.FamilyCustomers}}
	trigger, err := NewSyncTrigger(cfg, runner, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, trigger.Start(context.Background()))
	for i := 0; i < 2; i++ {
		select {
		case <-runner.ran:
		case <-time.After(5 * time.Second):
			t.Fatal("ticker did not fire")
		}
	}
	require.NoError(t, trigger.Stop(context.Background()))
	assert.GreaterOrEqual(t, len(runner.families()), 2)
}
