package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"ride-convoy/internal/domain/geo"
	"ride-convoy/internal/ports"
)

var ErrEmptyRoute = errors.New("live: route walker needs at least one point")

// RouteWalker is a simulated device that moves along a route geometry,
// one point per interval, and then stays at the last point.
type RouteWalker struct {
	mu     sync.Mutex
	points []geo.Coordinate
	next   int
	now    func() time.Time
}

var _ ports.Locator = (*RouteWalker)(nil)

func NewRouteWalker(points []geo.Coordinate) (*RouteWalker, error) {
	if len(points) == 0 {
		return nil, ErrEmptyRoute
	}
	return &RouteWalker{
		points: append([]geo.Coordinate(nil), points...),
		now:    time.Now,
	}, nil
}

// Current returns the walker's position and advances it.
func (walker *RouteWalker) Current(ctx context.Context) (ports.Fix, error) {
	if err := ctx.Err(); err != nil {
		return ports.Fix{}, err
	}
	return walker.step(), nil
}

// Watch delivers one fix per interval until ctx ends or Stop is called.
func (walker *RouteWalker) Watch(ctx context.Context, opts ports.WatchOptions) (ports.LocationWatch, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &walkerWatch{
		fixes:  make(chan ports.Fix),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		defer close(w.fixes)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last geo.Coordinate
		haveLast := false
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
			}

			fix := walker.step()
			if haveLast && opts.MinDistanceMeters > 0 && geo.DistanceMeters(last, fix.Position) < opts.MinDistanceMeters {
				continue
			}
			last, haveLast = fix.Position, true

			select {
			case w.fixes <- fix:
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return w, nil
}

func (walker *RouteWalker) step() ports.Fix {
	walker.mu.Lock()
	defer walker.mu.Unlock()

	p := walker.points[walker.next]
	if walker.next < len(walker.points)-1 {
		walker.next++
	}
	return ports.Fix{Position: p, CapturedAt: walker.now().UTC()}
}

type walkerWatch struct {
	fixes  chan ports.Fix
	cancel context.CancelFunc
	done   chan struct{}
}

func (w *walkerWatch) Fixes() <-chan ports.Fix { return w.fixes }

// Stop cancels the watch and waits for its goroutine.
func (w *walkerWatch) Stop() {
	w.cancel()
	<-w.done
}
