package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator applies the SQL migrations that create the bcsync tables
type Migrator struct {
	migrate *migrate.Migrate
	source  fs.FS
	logger  *zap.Logger
}

// Status compares the applied schema version with the migrations in the source
type Status struct {
	Current   uint
	Dirty     bool
	Available []uint
	Pending   []uint
}

// New creates a Migrator reading migrations from a directory on disk
func New(db *sql.DB, migrationsDir string, logger *zap.Logger) (*Migrator, error) {
	return NewEmbedded(db, os.DirFS(migrationsDir), logger)
}

// NewEmbedded creates a Migrator reading migrations from an fs.FS such as migrations.FS
func NewEmbedded(db *sql.DB, fsys fs.FS, logger *zap.Logger) (*Migrator, error) {
	source, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return &Migrator{migrate: m, source: fsys, logger: logger}, nil
}

// Up applies every pending migration
func (m *Migrator) Up() error { return m.apply("up", m.migrate.Up) }

// Down rolls back every applied migration
func (m *Migrator) Down() error { return m.apply("down", m.migrate.Down) }

// Steps applies n migrations, rolling back when n is negative
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("step %d", n), func() error { return m.migrate.Steps(n) })
}

// GoTo migrates up or down to the given version
func (m *Migrator) GoTo(version uint) error {
	return m.apply(fmt.Sprintf("goto %d", version), func() error { return m.migrate.Migrate(version) })
}

// apply runs op and logs the version transition; ErrNoChange is not an error
func (m *Migrator) apply(op string, fn func() error) error {
	from, _, err := m.Version()
	if err != nil {
		return err
	}

	err = fn()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("Schema already current", zap.String("op", op), zap.Uint("version", from))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", op, err)
	}

	to, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Schema migrated",
		zap.String("op", op),
		zap.Uint("from", from),
		zap.Uint("to", to),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Version returns the applied version, 0 when nothing was applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Status reports the applied version and the migrations not applied yet
func (m *Migrator) Status() (*Status, error) {
	current, dirty, err := m.Version()
	if err != nil {
		return nil, err
	}
	available, err := Versions(m.source)
	if err != nil {
		return nil, err
	}
	return &Status{
		Current:   current,
		Dirty:     dirty,
		Available: available,
		Pending:   pendingAfter(available, current),
	}, nil
}

// Force records version as applied without running anything.
// Only for repairing a dirty schema after a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing schema version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Close releases the source and the database driver
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}

func pendingAfter(available []uint, current uint) []uint {
	pending := []uint{}
	for _, v := range available {
		if v > current {
			pending = append(pending, v)
		}
	}
	return pending
}
