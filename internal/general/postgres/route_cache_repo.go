package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-convoy/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RouteCacheRepo persists cached routes keyed by session in a single
// route_cache table.
type RouteCacheRepo struct {
	pool *pgxpool.Pool
}

var _ ports.RouteCacheStore = (*RouteCacheRepo)(nil)

// NewRouteCacheRepo ensures the table exists.
func NewRouteCacheRepo(ctx context.Context, pool *pgxpool.Pool) (*RouteCacheRepo, error) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS route_cache (
			cache_key  TEXT PRIMARY KEY,
			payload    BYTEA NOT NULL,
			cached_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return nil, fmt.Errorf("creating route_cache: %w", err)
	}
	return &RouteCacheRepo{pool: pool}, nil
}

// Get returns the stored payload or ports.ErrCacheMiss.
func (repo *RouteCacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := repo.pool.QueryRow(ctx, `
		SELECT payload
		FROM route_cache
		WHERE cache_key = $1
	`, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Put upserts the payload for key.
func (repo *RouteCacheRepo) Put(ctx context.Context, key string, value []byte) error {
	_, err := repo.pool.Exec(ctx, `
		INSERT INTO route_cache (cache_key, payload, cached_at)
		VALUES ($1, $2, now())
		ON CONFLICT (cache_key)
		DO UPDATE SET payload = EXCLUDED.payload, cached_at = EXCLUDED.cached_at
	`, key, value)
	return err
}

// Delete removes key; deleting a missing key is not an error.
func (repo *RouteCacheRepo) Delete(ctx context.Context, key string) error {
	_, err := repo.pool.Exec(ctx, `DELETE FROM route_cache WHERE cache_key = $1`, key)
	return err
}
