package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"alertflow/internal/logger"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

func newPostgresMigrator(db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(postgresFS, "postgres")
	if err != nil {
		return nil, fmt.Errorf("create migration source failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver failed: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator failed: %w", err)
	}
	return m, nil
}

// MigratePostgres applies the embedded alert_rules, alerts and audit log schema.
func MigratePostgres(db *sql.DB, log logger.Logger) error {
	m, err := newPostgresMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Infow("No new migrations to apply")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("get migration version failed: %w", err)
	}

	log.Infow("Migrations applied", "version", version, "dirty", dirty)
	return nil
}
