package cache

import (
	"context"
	"time"

	"ride-convoy/internal/ports"
)

// RouteStore is the in-process route cache backend.
type RouteStore struct {
	c *Cache[[]byte]
}

var _ ports.RouteCacheStore = (*RouteStore)(nil)

func NewRouteStore(ttl time.Duration) *RouteStore {
	return &RouteStore{c: New[[]byte](ttl)}
}

func (s *RouteStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (s *RouteStore) Put(_ context.Context, key string, value []byte) error {
	s.c.Set(key, append([]byte(nil), value...))
	return nil
}

func (s *RouteStore) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *RouteStore) Close() {
	s.c.Close()
}
