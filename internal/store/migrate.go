package store

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

func prepare() error {
	goose.SetBaseFS(migrations)
	return goose.SetDialect("postgres")
}

// Migrate applies pending migrations.
func Migrate(db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Rollback reverts the latest migration.
func Rollback(db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	if err := goose.Down(db, migrationsDir); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Status logs the state of every migration.
func Status(db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	return goose.Status(db, migrationsDir)
}
