package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/bcsync/internal/infrastructure/config"
)

// Database is the gorm session shared by the stores, plus its connection pool
type Database struct {
	DB   *gorm.DB
	pool *sql.DB
}

// DatabaseOption adjusts the gorm configuration before the connection is opened
type DatabaseOption func(*gorm.Config)

// WithGormLogger replaces the silent default logger, normally with logger.NewGormLogger
func WithGormLogger(l gormlogger.Interface) DatabaseOption {
	return func(c *gorm.Config) {
		c.Logger = l
	}
}

// NewDatabase connects to PostgreSQL and verifies the connection.
// Stores write through explicit transactions where they need them, so gorm's implicit one is off.
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}
	for _, opt := range opts {
		opt(gormCfg)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s/%s: %w", cfg.Host, cfg.DBName, err)
	}
	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("connection pool: %w", err)
	}
	configurePool(pool, cfg)

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s/%s: %w", cfg.Host, cfg.DBName, err)
	}
	return &Database{DB: db, pool: pool}, nil
}

func configurePool(pool *sql.DB, cfg *config.DatabaseConfig) {
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
}

// Ping is the database health check
func (d *Database) Ping(ctx context.Context) error {
	return d.pool.PingContext(ctx)
}

func (d *Database) Close() error {
	return d.pool.Close()
}
