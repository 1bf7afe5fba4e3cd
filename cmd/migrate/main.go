// Command migrate manages the bcsync PostgreSQL schema.
// Migrations compiled into the binary are used unless -dir points at a directory.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/infrastructure/config"
	"github.com/erp/bcsync/internal/infrastructure/logger"
	"github.com/erp/bcsync/internal/infrastructure/migration"
	"github.com/erp/bcsync/migrations"
)

const defaultCreateDir = "migrations"

var errUsage = errors.New("usage")

// schemaCommand runs against a connected Migrator
type schemaCommand struct {
	args int
	run  func(m *migration.Migrator, log *zap.Logger, args []string) error
}

var schemaCommands = map[string]schemaCommand{
	"up":   {run: func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Up() }},
	"down": {run: func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Down() }},
	"step": {args: 1, run: func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		return m.Steps(n)
	}},
	"goto": {args: 1, run: func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.GoTo(uint(v))
	}},
	"force": {args: 1, run: func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.Force(v)
	}},
	"status": {run: func(m *migration.Migrator, log *zap.Logger, _ []string) error {
		st, err := m.Status()
		if err != nil {
			return err
		}
		log.Info("Schema status",
			zap.Uint("version", st.Current),
			zap.Bool("dirty", st.Dirty),
			zap.Uints("pending", st.Pending),
		)
		if st.Dirty {
			log.Warn("Schema is dirty; fix the failed migration, then run force <version>")
		}
		return nil
	}},
}

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the binary")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Usage = printUsage
	flag.Parse()

	_ = godotenv.Load()

	logCfg := logger.ForEnvironment(os.Getenv("ERP_APP_ENV"))
	logCfg.Level = *logLevel
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	err = run(log, *dir, flag.Args())
	_ = logger.Sync(log)
	if errors.Is(err, errUsage) {
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("Migration command failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger, dir string, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	name, rest := args[0], args[1:]

	switch name {
	case "create":
		return create(log, dir, rest)
	case "list":
		return list(log, source(dir))
	}

	cmd, ok := schemaCommands[name]
	if !ok || len(rest) < cmd.args {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database %s/%s: %w", cfg.Database.Host, cfg.Database.DBName, err)
	}

	m, err := migration.NewEmbedded(db, source(dir), log)
	if err != nil {
		return err
	}
	defer m.Close()

	return cmd.run(m, log, rest)
}

func source(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func create(log *zap.Logger, dir string, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if dir == "" {
		dir = defaultCreateDir
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up", mf.UpPath),
		zap.String("down", mf.DownPath),
	)
	log.Info("Rebuild the binaries to embed it, or pass -dir to apply it from disk")
	return nil
}

func list(log *zap.Logger, fsys fs.FS) error {
	names, err := migration.ListMigrations(fsys)
	if err != nil {
		return err
	}
	log.Info("Available migrations", zap.Int("count", len(names)))
	for _, n := range names {
		fmt.Println("  -", n)
	}
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `migrate manages the bcsync schema (erp_settings, erp catalog mirror, sync runs)

Usage:
  migrate [-dir path] [-log-level level] <command> [arguments]

Commands:
  up                    apply all pending migrations
  down                  roll back all migrations
  step <n>              apply n migrations, negative n rolls back
  goto <version>        migrate up or down to version
  status                show the applied version and pending migrations
  force <version>       mark version applied, for repairing a dirty schema
  list                  list the migrations in the source
  create <name> [desc]  write the next migration pair (default dir ./migrations)

Database settings come from config.toml, ERP_DATABASE_* variables or .env.`)
}
