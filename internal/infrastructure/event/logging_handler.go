package event

import (
	"context"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/phoneauth"
	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LoggingHandler records every event it receives as a structured log entry
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(l *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: l.Named("events")}
}

// EventTypes returns nil so the handler receives all events
func (h *LoggingHandler) EventTypes() []string {
	return nil
}

// Handle logs the event with its type specific fields
func (h *LoggingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *integration.SyncCompletedEvent:
		fields = append(fields,
			zap.String("family", e.Family.String()),
			zap.Int("created", e.Created),
			zap.Int("updated", e.Updated),
			zap.Int("errors", e.Errors),
		)
	case *integration.ConnectedEvent:
		fields = append(fields, zap.String("grant_type", e.GrantType))
	case *integration.TokenRefreshedEvent:
		fields = append(fields, zap.Bool("refresh_token_rotated", e.RefreshTokenRotated))
	case *integration.TokenRefreshFailedEvent:
		fields = append(fields, zap.String("reason", e.Reason))
	case *phoneauth.ResolvedEvent:
		fields = append(fields,
			zap.String("status", e.Status.String()),
			zap.Int("attempts", e.Attempts),
		)
	}

	logger.For(ctx, h.logger).Info("Domain event", fields...)
	return nil
}

var _ shared.EventHandler = (*LoggingHandler)(nil)
