package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	familyKey
)

// WithRequestID tags ctx with the id RequestID middleware assigned
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithSyncRun tags ctx with the entity family being synchronized.
// Statements and log lines of the run then carry a family field.
func WithSyncRun(ctx context.Context, family string) context.Context {
	return context.WithValue(ctx, familyKey, family)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func GetFamily(ctx context.Context) string {
	family, _ := ctx.Value(familyKey).(string)
	return family
}

// For returns base with the request id, sync family and trace ids found in ctx
func For(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	fields := contextFields(ctx)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

func contextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if family := GetFamily(ctx); family != "" {
		fields = append(fields, zap.String("family", family))
	}
	return fields
}
