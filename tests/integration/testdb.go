// Package integration runs bcsync against a real PostgreSQL started with testcontainers.
// One container serves the whole package; every test starts from empty erp_* tables.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/erp/bcsync/internal/infrastructure/config"
	"github.com/erp/bcsync/internal/infrastructure/logger"
	"github.com/erp/bcsync/internal/infrastructure/migration"
	"github.com/erp/bcsync/internal/infrastructure/persistence"
	"github.com/erp/bcsync/migrations"
)

// erpTables are emptied before each test; schema_migrations is kept
var erpTables = []string{
	"erp_sync_runs",
	"erp_price_list_lines",
	"erp_price_lists",
	"erp_items",
	"erp_customers",
	"erp_oauth_states",
	"erp_oauth_tokens",
	"erp_settings",
}

var postgres struct {
	once      sync.Once
	container *tcpostgres.PostgresContainer
	cfg       config.DatabaseConfig
	err       error
}

// TestDB is a migrated database opened through persistence.NewDatabase
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB returns a connection to the package container with empty tables.
// The container starts on first use. Set TEST_DB_LOG=debug to see statements.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	postgres.once.Do(startPostgres)
	require.NoError(t, postgres.err, "PostgreSQL container unavailable")

	cfg := postgres.cfg
	db, err := persistence.NewDatabase(&cfg, persistence.WithGormLogger(
		logger.NewGormLogger(zaptest.NewLogger(t), logger.GormConfig{Level: dbLogLevel()}),
	))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.DB.Exec("TRUNCATE TABLE "+strings.Join(erpTables, ", ")+" CASCADE").Error)
	return &TestDB{DB: db.DB}
}

func dbLogLevel() string {
	if level := os.Getenv("TEST_DB_LOG"); level != "" {
		return level
	}
	return "silent"
}

func startPostgres() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("bcsync_test"),
		tcpostgres.WithUsername("bcsync"),
		tcpostgres.WithPassword("bcsync"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		postgres.err = fmt.Errorf("start container: %w", err)
		return
	}
	postgres.container = container

	host, err := container.Host(ctx)
	if err != nil {
		postgres.err = err
		return
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		postgres.err = err
		return
	}
	postgres.cfg = config.DatabaseConfig{
		Host:         host,
		Port:         port.Int(),
		User:         "bcsync",
		Password:     "bcsync",
		DBName:       "bcsync_test",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}
	postgres.err = migrateUp(postgres.cfg.DSN())
}

func migrateUp(dsn string) error {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	m, err := migration.NewEmbedded(sqlDB, migrations.FS, zap.NewNop())
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer m.Close()
	return m.Up()
}

// stopPostgres terminates the package container, if one was started
func stopPostgres() {
	if postgres.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = postgres.container.Terminate(ctx)
}
