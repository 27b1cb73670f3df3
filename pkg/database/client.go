// Package database provides the PostgreSQL connection pool, migration
// runner, and health check shared by every OpsRelay repository.
package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	stdsql "database/sql"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver for database/sql (migration runner only)
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps a pgx connection pool. Unlike the teacher, which drives
// all persistence through a generated ent client wrapped around the
// same *sql.DB, OpsRelay's repositories (pkg/storage) issue hand-written
// SQL directly against Pool — see DESIGN.md for why the generated ent
// client isn't reproduced here.
type Client struct {
	Pool *pgxpool.Pool
}

// NewClient opens a connection pool, applies pending migrations, and
// creates the supporting indexes the schema can't express declaratively.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(cfg.DSN); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := CreateSupportingIndexes(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create supporting indexes: %w", err)
	}

	return &Client{Pool: pool}, nil
}

// Close releases the connection pool.
func (c *Client) Close() {
	c.Pool.Close()
}

// runMigrations runs embedded golang-migrate migrations over a short-lived
// database/sql connection, the same pattern the teacher uses to keep
// migrations embedded in the binary rather than shipped as loose files.
func runMigrations(dsn string) error {
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Only close the source driver. Calling m.Close() also closes the
	// database driver's underlying *sql.DB, which here is a dedicated
	// short-lived connection we already defer-close ourselves — but
	// matching the teacher's explicit warning keeps the two drivers'
	// lifecycles from being silently coupled.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}
	return nil
}
