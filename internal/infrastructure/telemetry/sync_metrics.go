package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome label values
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeError   = "error"
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// SyncMetrics holds the instruments recorded by the sync service, the token manager
// and the phone login poller.
type SyncMetrics struct {
	entities     metric.Int64Counter
	duration     metric.Float64Histogram
	refreshes    metric.Int64Counter
	phonePolls   metric.Int64Counter
	phoneResults metric.Int64Counter
}

// NewSyncMetrics creates the instruments on the given meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var err error

	if m.entities, err = meter.Int64Counter("bcsync_sync_entities_total",
		metric.WithDescription("Entities processed by sync runs"),
		metric.WithUnit("{entity}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create sync entities counter: %w", err)
	}

	if m.duration, err = meter.Float64Histogram("bcsync_sync_duration_seconds",
		metric.WithDescription("Duration of sync runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800),
	); err != nil {
		return nil, fmt.Errorf("failed to create sync duration histogram: %w", err)
	}

	if m.refreshes, err = meter.Int64Counter("bcsync_token_refresh_total",
		metric.WithDescription("OAuth access token refresh attempts"),
		metric.WithUnit("{refresh}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create token refresh counter: %w", err)
	}

	if m.phonePolls, err = meter.Int64Counter("bcsync_phone_auth_checks_total",
		metric.WithDescription("Phone login status checks"),
		metric.WithUnit("{check}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create phone auth checks counter: %w", err)
	}

	if m.phoneResults, err = meter.Int64Counter("bcsync_phone_auth_results_total",
		metric.WithDescription("Resolved phone logins by final status"),
		metric.WithUnit("{login}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create phone auth results counter: %w", err)
	}

	return m, nil
}

// RecordSyncRun records the counters and duration of one finished run
func (m *SyncMetrics) RecordSyncRun(ctx context.Context, family string, created, updated, errs int, d time.Duration) {
	if m == nil {
		return
	}
	fam := attribute.String("family", family)
	for outcome, n := range map[string]int{OutcomeCreated: created, OutcomeUpdated: updated, OutcomeError: errs} {
		if n > 0 {
			m.entities.Add(ctx, int64(n), metric.WithAttributes(fam, attribute.String("outcome", outcome)))
		}
	}
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(fam))
}

// RecordTokenRefresh counts one refresh attempt
func (m *SyncMetrics) RecordTokenRefresh(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeOf(err))))
}

// RecordPhoneAuthCheck counts one status check of a phone login
func (m *SyncMetrics) RecordPhoneAuthCheck(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.phonePolls.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeOf(err))))
}

// RecordPhoneAuthResult counts a phone login that left the pending state or timed out
func (m *SyncMetrics) RecordPhoneAuthResult(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.phoneResults.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
