package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ride-convoy/internal/ports"
)

// RouteCacheStore keeps cached routes in a local file so they survive
// restarts of the rider process.
type RouteCacheStore struct {
	db *sql.DB
}

var _ ports.RouteCacheStore = (*RouteCacheStore)(nil)

func NewRouteCacheStore(ctx context.Context, db *sql.DB) (*RouteCacheStore, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS route_cache (
		cache_key TEXT PRIMARY KEY,
		payload   BLOB NOT NULL,
		cached_at TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &RouteCacheStore{db: db}, nil
}

func (s *RouteCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM route_cache WHERE cache_key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return payload, nil
}

func (s *RouteCacheStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO route_cache (cache_key, payload, cached_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *RouteCacheStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM route_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
