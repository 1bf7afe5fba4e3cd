package phoneauth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/phoneauth"
	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/telemetry"
)

const (
	// DefaultMaxAttempts caps the status checks of one challenge
	DefaultMaxAttempts = 60
	// DefaultPollInterval separates two status checks
	DefaultPollInterval = 2 * time.Second
)

// PollerConfig holds the polling policy
type PollerConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// PollerOption configures a Poller
type PollerOption func(*Poller)

// WithSleep replaces the wait between checks
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) PollerOption {
	return func(p *Poller) { p.sleep = sleep }
}

// WithPollerEvents publishes a resolved event per challenge
func WithPollerEvents(events shared.EventPublisher) PollerOption {
	return func(p *Poller) { p.events = events }
}

// WithPollerMetrics counts checks and outcomes
func WithPollerMetrics(metrics *telemetry.SyncMetrics) PollerOption {
	return func(p *Poller) { p.metrics = metrics }
}

// Poller checks a challenge until it leaves the pending state or the attempt cap is reached.
// It issues at most MaxAttempts checks and none after returning.
type Poller struct {
	client  phoneauth.Client
	config  PollerConfig
	sleep   func(ctx context.Context, d time.Duration) error
	events  shared.EventPublisher
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
}

// NewPoller creates a Poller
func NewPoller(client phoneauth.Client, config PollerConfig, logger *zap.Logger, opts ...PollerOption) *Poller {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	p := &Poller{
		client: client,
		config: config,
		sleep:  sleepContext,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls token. It returns the authenticated result, ErrChallengeFailed for a terminal
// failure, ErrPollTimeout when still pending after the cap, or the check error as is.
func (p *Poller) Wait(ctx context.Context, token string) (*phoneauth.StatusResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "Poller", "Wait")
	defer span.End()

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		result, err := p.client.CheckStatus(ctx, token)
		p.metrics.RecordPhoneAuthCheck(ctx, err)
		if err != nil {
			telemetry.SetAttributes(span, telemetry.SpanAttrAttempts, attempt)
			telemetry.RecordError(span, err)
			p.logger.Warn("Phone login status check failed", zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}

		if result.Status.IsTerminal() {
			telemetry.SetAttributes(span, telemetry.SpanAttrAttempts, attempt)
			p.resolve(ctx, token, result.Status, attempt)
			if result.Status == phoneauth.AuthStatusAuthenticated {
				telemetry.SetOK(span)
				return result, nil
			}
			return result, fmt.Errorf("%w: %s", phoneauth.ErrChallengeFailed, result.RawStatus)
		}

		telemetry.AddEvent(span, "pending", telemetry.SpanAttrAttempts, attempt)
		if attempt == p.config.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, p.config.Interval); err != nil {
			return nil, err
		}
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrAttempts, p.config.MaxAttempts)
	p.metrics.RecordPhoneAuthResult(ctx, "timeout")
	p.logger.Info("Phone login still pending after maximum attempts", zap.Int("attempts", p.config.MaxAttempts))
	return nil, phoneauth.ErrPollTimeout
}

func (p *Poller) resolve(ctx context.Context, token string, status phoneauth.AuthStatus, attempts int) {
	p.metrics.RecordPhoneAuthResult(ctx, status.String())
	p.logger.Info("Phone login resolved", zap.String("status", status.String()), zap.Int("attempts", attempts))
	if p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, phoneauth.NewResolvedEvent(token, status, attempts)); err != nil {
		p.logger.Warn("Failed to publish event", zap.String("event_type", phoneauth.EventTypeResolved), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
