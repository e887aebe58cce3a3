package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// schemaTables are the tables the repositories in this package read and write.
var schemaTables = []string{"sources", "jobs", "items", "insights"}

// RunMigrations brings the embedded sources/jobs/items/insights schema up to
// date and returns the resulting version and dirty flag. It fails if any
// repository table is missing afterwards.
func RunMigrations(db *DB) (uint, bool, error) {
	driver, err := sqlite.WithInstance(db.DB.DB, &sqlite.Config{})
	if err != nil {
		return 0, false, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, false, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, false, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	if err := verifySchema(db); err != nil {
		return version, dirty, err
	}

	return version, dirty, nil
}

func verifySchema(db *DB) error {
	query, args, err := sqlx.In(`SELECT name FROM sqlite_master WHERE type = 'table' AND name IN (?)`, schemaTables)
	if err != nil {
		return fmt.Errorf("failed to build schema query: %w", err)
	}

	var present []string
	if err := db.Select(&present, query, args...); err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	found := make(map[string]bool, len(present))
	for _, name := range present {
		found[name] = true
	}
	for _, table := range schemaTables {
		if !found[table] {
			return fmt.Errorf("schema is missing table %s", table)
		}
	}
	return nil
}
