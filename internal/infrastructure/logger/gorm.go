package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormConfig configures the gorm adapter
type GormConfig struct {
	// Level is a zap level name or "silent"
	Level string
	// SlowThreshold turns statements at or above it into warnings; zero disables
	SlowThreshold time.Duration
	// LogParams puts bind values into logged SQL. OAuth tokens and the
	// Dokobit key are written through gorm, so keep it off outside development.
	LogParams bool
}

// GormLogger writes gorm statements to zap, tagged with the request and sync run
type GormLogger struct {
	logger *zap.Logger
	level  gormlogger.LogLevel
	cfg    GormConfig
}

// NewGormLogger creates the gorm adapter
func NewGormLogger(zapLogger *zap.Logger, cfg GormConfig) *GormLogger {
	return &GormLogger{
		logger: zapLogger.Named("gorm"),
		level:  gormLevel(cfg.Level),
		cfg:    cfg,
	}
}

// gormLevel maps a zap level name to gorm's coarser levels.
// gorm statement traces only appear at Info, which are then written at debug.
func gormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "debug":
		return gormlogger.Info
	case "error", "fatal":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// ParamsFilter hides bind values unless LogParams is set
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, params ...any) (string, []any) {
	if !l.cfg.LogParams {
		return sql, nil
	}
	return sql, params
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < min {
		return
	}
	if ce := l.logger.Check(lvl, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write(contextFields(ctx)...)
	}
}

// Trace logs one executed statement
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	lvl, msg, ok := l.classify(elapsed, err)
	if !ok {
		return
	}
	ce := l.logger.Check(lvl, msg)
	if ce == nil {
		return
	}

	sql, rows := fc()
	fields := append(contextFields(ctx),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// classify picks the zap level for a statement; ok is false when it is not logged.
// Lookups by external id miss on every first sync, so ErrRecordNotFound is not an error.
func (l *GormLogger) classify(elapsed time.Duration, err error) (zapcore.Level, string, bool) {
	switch {
	case l.level <= gormlogger.Silent:
		return 0, "", false
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound):
		return zapcore.ErrorLevel, "SQL failed", l.level >= gormlogger.Error
	case l.cfg.SlowThreshold > 0 && elapsed >= l.cfg.SlowThreshold:
		return zapcore.WarnLevel, "Slow SQL", l.level >= gormlogger.Warn
	default:
		return zapcore.DebugLevel, "SQL", l.level >= gormlogger.Info
	}
}
