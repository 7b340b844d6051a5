// Package postgres stores encrypted backups in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/Veraticus/stillsuit/internal/backup"
)

const schema = `
CREATE TABLE IF NOT EXISTS backups (
	user_id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// Store keeps one row per identity in the backups table.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and makes sure the backups table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the backups table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating backups table: %w", err)
	}
	return nil
}

// Upsert replaces the row for identity. The last writer wins.
func (s *Store) Upsert(ctx context.Context, identity, payload string, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backups (user_id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		identity, payload, updatedAt)
	if err != nil {
		return fmt.Errorf("upserting backup: %w", err)
	}
	return nil
}

// Fetch returns the row for identity or backup.ErrNotFound.
func (s *Store) Fetch(ctx context.Context, identity string) (*backup.Record, error) {
	var r backup.Record
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, updated_at FROM backups WHERE user_id = $1`, identity,
	).Scan(&r.Payload, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", backup.ErrNotFound, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching backup: %w", err)
	}
	return &r, nil
}

// Delete removes the row for identity.
func (s *Store) Delete(ctx context.Context, identity string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM backups WHERE user_id = $1`, identity); err != nil {
		return fmt.Errorf("deleting backup: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
