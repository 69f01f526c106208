package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"ride-convoy/internal/ports"
)

func TestCacheExpiry(t *testing.T) {
	c := New[string](time.Minute)
	defer c.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	if got, ok := c.Get("k"); !ok || got != "v" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}

	c.removeExpired()
	if c.Size() != 0 {
		t.Fatalf("size = %d after cleanup", c.Size())
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	c := New[int](0)
	defer c.Close()

	c.Set("k", 1)
	c.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	if _, ok := c.Get("k"); !ok {
		t.Fatal("zero TTL entry expired")
	}
	c.Close()
}

func TestRouteStore(t *testing.T) {
	ctx := context.Background()
	s := NewRouteStore(0)
	defer s.Close()

	if _, err := s.Get(ctx, "route_ride-1"); !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("err = %v", err)
	}

	payload := []byte("abc")
	_ = s.Put(ctx, "route_ride-1", payload)
	payload[0] = 'x'

	got, err := s.Get(ctx, "route_ride-1")
	if err != nil || string(got) != "abc" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	_ = s.Delete(ctx, "route_ride-1")
	if _, err := s.Get(ctx, "route_ride-1"); !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("after delete err = %v", err)
	}
}
