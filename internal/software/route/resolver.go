package route

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ride-convoy/internal/domain/geo"
	"ride-convoy/internal/domain/ride"
	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/ports"

	"golang.org/x/sync/singleflight"
)

// CachePolicy decides when a cached route stops being served.
type CachePolicy struct {
	// TTL of zero keeps entries for the lifetime of the session key.
	TTL time.Duration
	// InvalidateOnDestinationChange drops an entry whose destination
	// differs from the requested end point.
	InvalidateOnDestinationChange bool
}

// Outcome is the result of a resolution. Route is nil unless State is
// resolved.
type Outcome struct {
	State     ride.RouteState
	Route     *ride.RouteResult
	FromCache bool
}

// ViewportObserver receives the bounds to frame after a successful
// resolution.
type ViewportObserver func(geo.Bounds)

type Options struct {
	Logger   *logger.Logger
	Policy   CachePolicy
	Timeout  time.Duration // default 10s
	Viewport ViewportObserver
	Now      func() time.Time
}

// Resolver resolves routes through a provider and a per-session cache.
type Resolver struct {
	provider ports.RouteProvider
	store    ports.RouteCacheStore
	logger   *logger.Logger
	policy   CachePolicy
	timeout  time.Duration
	viewport ViewportObserver
	now      func() time.Time

	flights singleflight.Group
}

func NewResolver(provider ports.RouteProvider, store ports.RouteCacheStore, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Resolver{
		provider: provider,
		store:    store,
		logger:   opts.Logger,
		policy:   opts.Policy,
		timeout:  opts.Timeout,
		viewport: opts.Viewport,
		now:      opts.Now,
	}
}

// Resolve returns the route between start and end. With a session key the
// cache is consulted first and written after a successful lookup.
// Failures of any kind come back as an unavailable Outcome.
func (resolver *Resolver) Resolve(ctx context.Context, start, end geo.Coordinate, sessionKey string) Outcome {
	if sessionKey != "" {
		ctx = resolver.logger.WithRideID(ctx, sessionKey)
	}

	if err := errors.Join(start.Validate(), end.Validate()); err != nil {
		resolver.logger.Error(ctx, "route_invalid_input", "Rejected route request with invalid coordinates", err, map[string]any{
			"start": start.String(),
			"end":   end.String(),
		})
		return Outcome{State: ride.RouteStateUnavailable}
	}

	flightKey := sessionKey
	if flightKey == "" {
		flightKey = start.String() + ";" + end.String()
	}

	ch := resolver.flights.DoChan(flightKey, func() (any, error) {
		// detach so one caller giving up does not fail the others
		return resolver.resolve(context.WithoutCancel(ctx), start, end, sessionKey), nil
	})

	select {
	case <-ctx.Done():
		resolver.logger.Error(ctx, "route_abandoned", "Caller stopped waiting for route", ctx.Err(), nil)
		return Outcome{State: ride.RouteStateUnavailable}
	case res := <-ch:
		outcome := res.Val.(Outcome)
		if outcome.State == ride.RouteStateResolved {
			resolver.frame(start, end)
		}
		return outcome
	}
}

func (resolver *Resolver) resolve(ctx context.Context, start, end geo.Coordinate, sessionKey string) Outcome {
	if sessionKey != "" {
		if result, ok := resolver.lookup(ctx, sessionKey, end); ok {
			return Outcome{State: ride.RouteStateResolved, Route: result, FromCache: true}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, resolver.timeout)
	defer cancel()

	started := resolver.now()
	candidates, err := resolver.provider.Route(callCtx, start, end)
	if err != nil {
		action := "route_provider_failed"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			action = "route_provider_timeout"
		}
		resolver.logger.Error(ctx, action, "Routing provider request failed", err, map[string]any{
			"timeout_ms": resolver.timeout.Milliseconds(),
		})
		return Outcome{State: ride.RouteStateUnavailable}
	}
	if len(candidates) == 0 {
		resolver.logger.Info(ctx, "route_not_found", "Routing provider returned no candidates", map[string]any{
			"start": start.String(),
			"end":   end.String(),
		})
		return Outcome{State: ride.RouteStateUnavailable}
	}

	best := candidates[0]
	result, err := ride.NewRouteResult(best.Geometry, best.DistanceMeters, best.DurationSeconds, sessionKey)
	if err != nil {
		resolver.logger.Error(ctx, "route_invalid_candidate", "Routing provider returned an unusable route", err, nil)
		return Outcome{State: ride.RouteStateUnavailable}
	}

	resolver.logger.Info(ctx, "route_resolved", "Resolved route from provider", map[string]any{
		"distance_m":  result.Distance(),
		"duration_s":  result.Duration(),
		"points":      len(best.Geometry),
		"duration_ms": resolver.now().Sub(started).Milliseconds(),
	})

	if sessionKey != "" {
		resolver.save(ctx, sessionKey, result, end)
	}

	return Outcome{State: ride.RouteStateResolved, Route: result}
}

// lookup reads and vets the cached entry. Unreadable, expired or stale
// entries are misses.
func (resolver *Resolver) lookup(ctx context.Context, sessionKey string, end geo.Coordinate) (*ride.RouteResult, bool) {
	key := CacheKey(sessionKey)

	raw, err := resolver.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			resolver.logger.Error(ctx, "route_cache_read_failed", "Failed to read route cache", err, map[string]any{"key": key})
		}
		return nil, false
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		resolver.logger.Error(ctx, "route_cache_corrupt", "Discarding unreadable route cache entry", err, map[string]any{"key": key})
		resolver.evict(ctx, key)
		return nil, false
	}

	if ttl := resolver.policy.TTL; ttl > 0 && resolver.now().Sub(entry.CachedAt) > ttl {
		resolver.logger.Debug(ctx, "route_cache_expired", "Cached route expired", map[string]any{"key": key})
		resolver.evict(ctx, key)
		return nil, false
	}

	if resolver.policy.InvalidateOnDestinationChange && entry.Destination != nil && !sameSpot(*entry.Destination, end) {
		resolver.logger.Info(ctx, "route_cache_destination_changed", "Destination moved, dropping cached route", map[string]any{
			"key":       key,
			"cached":    entry.Destination.String(),
			"requested": end.String(),
		})
		resolver.evict(ctx, key)
		return nil, false
	}

	result, err := ride.NewRouteResult(entry.Geometry, entry.Distance, entry.Duration, sessionKey)
	if err != nil {
		resolver.logger.Error(ctx, "route_cache_corrupt", "Discarding unreadable route cache entry", err, map[string]any{"key": key})
		resolver.evict(ctx, key)
		return nil, false
	}

	resolver.logger.Debug(ctx, "route_cache_hit", "Serving route from cache", map[string]any{"key": key})
	return result, true
}

func (resolver *Resolver) save(ctx context.Context, sessionKey string, result *ride.RouteResult, end geo.Coordinate) {
	key := CacheKey(sessionKey)

	raw, err := encodeEntry(result, end, resolver.now())
	if err != nil {
		resolver.logger.Error(ctx, "route_cache_encode_failed", "Failed to encode route for cache", err, nil)
		return
	}
	if err := resolver.store.Put(ctx, key, raw); err != nil {
		resolver.logger.Error(ctx, "route_cache_write_failed", "Failed to write route cache", err, map[string]any{"key": key})
	}
}

func (resolver *Resolver) evict(ctx context.Context, key string) {
	if err := resolver.store.Delete(ctx, key); err != nil {
		resolver.logger.Error(ctx, "route_cache_delete_failed", "Failed to delete route cache entry", err, map[string]any{"key": key})
	}
}

// frame notifies the viewport observer without holding up the caller.
func (resolver *Resolver) frame(start, end geo.Coordinate) {
	if resolver.viewport == nil {
		return
	}
	bounds := geo.BoundsOf(start, end)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resolver.logger.Error(context.Background(), "route_viewport_panic", "Viewport observer panicked", fmt.Errorf("%v", r), nil)
			}
		}()
		resolver.viewport(bounds)
	}()
}

// sameSpot compares destinations to roughly a metre.
func sameSpot(a, b geo.Coordinate) bool {
	const eps = 1e-5
	return math.Abs(a.Lat-b.Lat) < eps && math.Abs(a.Lon-b.Lon) < eps
}
