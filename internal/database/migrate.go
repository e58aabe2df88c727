package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations applies all pending database migrations, then brings the
// activities table up to date with any additively introduced columns. It
// should be called once on startup before any reads or writes. Safe to call
// repeatedly.
func RunMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("database: set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("database: run migrations: %w", err)
	}

	if err := EnsureActivityColumns(db); err != nil {
		return fmt.Errorf("database: ensure activity columns: %w", err)
	}

	return nil
}
