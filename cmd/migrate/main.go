// Command migrate applies the embedded schema migrations.
//
//	migrate              apply all pending migrations
//	migrate -down 1      roll back N migrations
//	migrate -force 3     mark version 3 without running anything (after a dirty failure)
//	migrate -version     print the current schema version and exit
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	appmigrations "github.com/pandochealth/triage/migrations"
	"github.com/pandochealth/triage/pkg/logging"
)

func main() {
	var (
		down        = flag.Int("down", 0, "roll back this many migrations instead of migrating up")
		force       = flag.Int("force", -1, "set the schema version without running migrations")
		showVersion = flag.Bool("version", false, "print the current schema version and exit")
	)
	flag.Parse()

	logger := logging.New(os.Getenv("LOG_LEVEL"))

	m, cleanup, err := newMigrator()
	if err != nil {
		logger.Error("migrator init failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanup()

	switch {
	case *showVersion:
		reportVersion(logger, m)
	case *force >= 0:
		if err := m.Force(*force); err != nil {
			logger.Error("force failed", "version", *force, "error", err.Error())
			os.Exit(1)
		}
		logger.Info("schema version forced", "version", *force)
	case *down > 0:
		if err := m.Steps(-*down); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Error("rollback failed", "steps", *down, "error", err.Error())
			os.Exit(1)
		}
		logger.Info("rollback complete", "steps", *down)
		reportVersion(logger, m)
	default:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Error("migrate up failed", "error", err.Error())
			os.Exit(1)
		}
		logger.Info("migrations complete")
		reportVersion(logger, m)
	}
}

func newMigrator() (*migrate.Migrate, func(), error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, func() { _, _ = m.Close() }, nil
}

func reportVersion(logger *logging.Logger, m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("schema at nil version (no migrations applied)")
		return
	}
	if err != nil {
		logger.Error("version lookup failed", "error", err.Error())
		return
	}
	logger.Info("schema version", "version", version, "dirty", dirty)
}
