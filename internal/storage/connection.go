package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// PostgreSQL driver registration.
	_ "github.com/lib/pq"
)

const (
	// connectTimeout bounds the initial connectivity check in NewConnection.
	connectTimeout = 10 * time.Second

	// healthCheckTimeout bounds each HealthCheck ping.
	healthCheckTimeout = 2 * time.Second
)

var (
	// ErrNoDatabaseConnection is returned when an operation requires a
	// database connection that has not been established.
	ErrNoDatabaseConnection = errors.New("no database connection")

	// ErrConnectionFailed is returned when the database cannot be reached.
	ErrConnectionFailed = errors.New("database connection failed")
)

// Connection wraps *sql.DB with pool configuration applied.
//
// The DB field is exported for migration tooling and test helpers; application
// code goes through the store types.
type Connection struct {
	DB *sql.DB
}

// NewConnection opens a PostgreSQL connection pool from config and verifies
// connectivity with a bounded ping.
func NewConnection(cfg *Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Connection{DB: db}, nil
}

// BeginTx starts a transaction on the underlying pool.
func (c *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if c == nil || c.DB == nil {
		return nil, ErrNoDatabaseConnection
	}

	return c.DB.BeginTx(ctx, opts)
}

// HealthCheck verifies the database is reachable, bounded by a short timeout
// so readiness probes never hang.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c == nil || c.DB == nil {
		return ErrNoDatabaseConnection
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return nil
}

// Close closes the underlying connection pool.
func (c *Connection) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}

	return c.DB.Close()
}
