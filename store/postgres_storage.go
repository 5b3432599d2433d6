package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const postgresOpTimeout = 5 * time.Second

// PostgresStorage keeps session state in a key/value table, for hosts (kiosk
// shells, server-rendered storefronts) that share tracking state between
// processes of one browsing session. Rows are keyed by the caller's state key,
// which the host scopes to the session.
type PostgresStorage struct {
	db    *sql.DB
	table string
}

// NewPostgresStorage creates a PostgresStorage instance. Call EnsureSchema once
// before use if the table may not exist yet.
func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db, table: "tracker_session_state"}
}

// EnsureSchema creates the backing table if needed.
func (s *PostgresStorage) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			state_key  TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresStorage) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), postgresOpTimeout)
	defer cancel()

	var value string
	query := fmt.Sprintf(`SELECT value FROM %s WHERE state_key = $1;`, s.table)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get state %q: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStorage) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), postgresOpTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (state_key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (state_key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW();
	`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set state %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStorage) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), postgresOpTimeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE state_key = $1;`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to remove state %q: %w", key, err)
	}
	return nil
}
