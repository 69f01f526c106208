package ports

import (
	"context"
	"errors"
)

var ErrCacheMiss = errors.New("cache miss")

// RouteCacheStore is the key/value backend of the route cache. Values are
// opaque serialized entries; Get returns ErrCacheMiss for unknown keys.
type RouteCacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
