package migration

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

type migrator interface {
	Up(ctx context.Context) ([]*goose.MigrationResult, error)
}

var newMigrator = func(db *sql.DB) (migrator, error) {
	return newProvider(db)
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(embedded, "sql")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectPostgres, db, fsys)
}

// EnsureMigrated applies every pending migration embedded in the binary.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *slog.Logger, dbHost string) error {
	start := time.Now()
	log = log.With("component", "database", "db_host", dbHost)

	log.Info("db migration check", "event", "db_migration_check", "status", "starting")

	m, err := newMigrator(db)
	if err != nil {
		log.Error("db migration failed", "event", "db_migration_failed", "status", "error",
			"error_message", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("load migrations: %w", err)
	}

	results, err := m.Up(ctx)
	for _, r := range results {
		step := ""
		if r.Source != nil {
			step = fmt.Sprintf("%05d", r.Source.Version)
		}
		if r.Error != nil {
			log.Error("db migration step failed", "event", "db_migration_failed", "status", "error",
				"migration_step", step, "error_message", r.Error.Error(),
				"step_duration_ms", r.Duration.Milliseconds())
			continue
		}
		log.Info("db migration step", "event", "db_migration_step", "status", "success",
			"migration_step", step, "step_duration_ms", r.Duration.Milliseconds())
	}
	if err != nil {
		log.Error("db migration failed", "event", "db_migration_failed", "status", "error",
			"error_message", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("apply migrations: %w", err)
	}

	if len(results) == 0 {
		log.Info("schema up to date, skipping migration", "event", "db_migration_skip", "status", "success",
			"duration_ms", time.Since(start).Milliseconds())
		return nil
	}

	log.Info("db migration finished", "event", "db_migration_success", "status", "success",
		"applied", len(results), "duration_ms", time.Since(start).Milliseconds())
	return nil
}
