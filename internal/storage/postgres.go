// Package storage owns the Postgres connection lifecycle and schema
// migrations. The uniqueness constraints that back the dedup invariants
// (open conversation per item/requester, one pending report per pair,
// one block per pair) live in the migration files, not in application code.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// connectAttempts bounds the startup retry loop. Store connectivity is the
// only fatal failure class; once connected, per-request errors surface to
// callers unchanged.
const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Open connects to Postgres with startup retries and verifies the
// connection with a ping.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}

	var pingErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr = db.PingContext(pingCtx)
		cancel()
		if pingErr == nil {
			return db, nil
		}
		log.Printf("storage: ping attempt %d/%d failed: %v", attempt, connectAttempts, pingErr)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}

	db.Close()
	return nil, fmt.Errorf("storage: connect: %w", pingErr)
}

// Migrate applies all pending schema migrations from the embedded files.
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("storage: migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("storage: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("storage: migrate init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storage: migrate up: %w", err)
	}

	log.Printf("storage: schema up to date")
	return nil
}
