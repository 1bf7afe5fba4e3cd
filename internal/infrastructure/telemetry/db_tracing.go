package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include bind variables; never in production, they carry tokens
	SlowQueryThresh time.Duration
	DBName          string
}

// RegisterDBTracing installs otelgorm plus a callback that flags slow and failed statements.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled")
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := &dbSpanCallback{slowQueryThresh: cfg.SlowQueryThresh}
	if err := cb.register(db); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

type queryStartKey struct{}

type dbSpanCallback struct {
	slowQueryThresh time.Duration
}

func (c *dbSpanCallback) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (c *dbSpanCallback) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}

	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > c.slowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}

func (c *dbSpanCallback) register(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("bcsync:before_create", c.before),
		cb.Create().After("gorm:create").Register("bcsync:after_create", c.after),
		cb.Query().Before("gorm:query").Register("bcsync:before_query", c.before),
		cb.Query().After("gorm:query").Register("bcsync:after_query", c.after),
		cb.Update().Before("gorm:update").Register("bcsync:before_update", c.before),
		cb.Update().After("gorm:update").Register("bcsync:after_update", c.after),
		cb.Delete().Before("gorm:delete").Register("bcsync:before_delete", c.before),
		cb.Delete().After("gorm:delete").Register("bcsync:after_delete", c.after),
		cb.Row().Before("gorm:row").Register("bcsync:before_row", c.before),
		cb.Row().After("gorm:row").Register("bcsync:after_row", c.after),
		cb.Raw().Before("gorm:raw").Register("bcsync:before_raw", c.before),
		cb.Raw().After("gorm:raw").Register("bcsync:after_raw", c.after),
	)
}
