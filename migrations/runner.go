package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Runner applies embedded migrations using golang-migrate.
type Runner struct {
	config  *Config
	migrate *migrate.Migrate
	db      *sql.DB
}

// migrateLogger routes golang-migrate output through the standard logger.
type migrateLogger struct{}

var _ migrate.Logger = (*migrateLogger)(nil)

func (*migrateLogger) Printf(format string, v ...any) { log.Printf(format, v...) }
func (*migrateLogger) Verbose() bool                  { return false }

// NewMigrationRunner creates a migration runner with the given configuration.
// Embedded migrations are validated before the database is touched.
func NewMigrationRunner(config *Config) (*Runner, error) {
	log.Printf("Initializing migration runner with config: %s", config.String())

	if err := validateMigrations(migrationFS()); err != nil {
		return nil, fmt.Errorf("embedded migration validation failed: %w", err)
	}

	db, err := sql.Open("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: config.MigrationTable,
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationFS(), ".")
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create embedded migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = &migrateLogger{}

	return &Runner{config: config, migrate: m, db: db}, nil
}

// Up applies all pending migrations.
func (r *Runner) Up() error {
	log.Println("Applying pending migrations...")

	err := r.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("No pending migrations")

		return nil
	}

	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	log.Println("Migrations applied successfully")

	return nil
}

// Down rolls back the last migration.
func (r *Runner) Down() error {
	log.Println("Rolling back last migration...")

	err := r.migrate.Steps(-1)
	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("No migrations to roll back")

		return nil
	}

	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}

	log.Println("Rollback completed successfully")

	return nil
}

// Status prints the embedded migration files and current database version.
func (r *Runner) Status() error {
	files, err := listMigrations(migrationFS())
	if err != nil {
		return err
	}

	log.Printf("Embedded migrations: %d files", len(files))

	for _, file := range files {
		log.Printf("  %s", file)
	}

	return r.Version()
}

// Version prints the current migration version and dirty state.
func (r *Runner) Version() error {
	version, dirty, err := r.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Println("Database version: none (no migrations applied)")

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	log.Printf("Database version: %d (dirty: %t)", version, dirty)

	return nil
}

// Drop drops everything in the database (destructive, used in development).
func (r *Runner) Drop() error {
	log.Println("Dropping all tables...")

	if err := r.migrate.Drop(); err != nil {
		return fmt.Errorf("drop failed: %w", err)
	}

	log.Println("Drop completed")

	return nil
}

// Close closes the underlying database connection.
func (r *Runner) Close() error {
	sourceErr, dbErr := r.migrate.Close()
	if sourceErr != nil {
		return sourceErr
	}

	return dbErr
}
