package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ride-convoy/internal/domain/geo"
	"ride-convoy/internal/domain/ride"
	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/ports"
)

var ErrWatchEnded = errors.New("live: location watch ended")

type Options struct {
	Logger     *logger.Logger
	Watch      ports.WatchOptions
	OnStatus   func(ride.LocationStatus)
	OnPosition func(ride.PositionSample) // after every accepted merge
	Now        func() time.Time
}

// Aggregator samples the local rider's position onto the session bus and
// keeps the latest position of every rider heard from.
type Aggregator struct {
	bus       ports.Bus
	locator   ports.Locator
	sessionID string
	localID   string
	logger    *logger.Logger
	watchOpts ports.WatchOptions
	onStatus  func(ride.LocationStatus)
	onPos     func(ride.PositionSample)
	now       func() time.Time

	mu        sync.Mutex
	positions map[string]ride.PositionSample
	status    ride.LocationStatus
	cancel    context.CancelFunc
	done      chan struct{}
	unsub     func()

	notifyMu sync.Mutex
}

// New builds an idle aggregator that already merges remote positions.
func New(bus ports.Bus, locator ports.Locator, sessionID, localID string, opts Options) *Aggregator {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Watch.Interval <= 0 {
		opts.Watch.Interval = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	aggregator := &Aggregator{
		bus:       bus,
		locator:   locator,
		sessionID: sessionID,
		localID:   localID,
		logger:    opts.Logger,
		watchOpts: opts.Watch,
		onStatus:  opts.OnStatus,
		onPos:     opts.OnPosition,
		now:       opts.Now,
		positions: make(map[string]ride.PositionSample),
		status:    ride.LocationIdle,
	}
	aggregator.unsub = bus.Subscribe(contracts.EventUpdateRiderLocation, aggregator.handleRemote)

	return aggregator
}

// Start begins sampling. Calling Start while sampling is a no-op. Once the
// loop has ended, whether by Stop, a cancelled ctx or a device failure, the
// next Start opens a fresh one.
func (aggregator *Aggregator) Start(ctx context.Context) {
	aggregator.mu.Lock()
	if aggregator.cancel != nil {
		aggregator.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	aggregator.cancel = cancel
	aggregator.done = done
	changed := aggregator.status != ride.LocationTracking
	aggregator.status = ride.LocationTracking
	aggregator.mu.Unlock()

	if changed {
		aggregator.notifyStatus(ride.LocationTracking)
	}

	go func() {
		defer close(done)
		aggregator.sample(loopCtx)
		aggregator.finish(done, cancel)
	}()
}

// Stop ends sampling and returns once the device subscription is released.
func (aggregator *Aggregator) Stop() {
	aggregator.mu.Lock()
	cancel, done := aggregator.cancel, aggregator.done
	aggregator.cancel, aggregator.done = nil, nil
	aggregator.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// finish runs as the loop exits. It releases the loop's slot and drops
// tracking back to idle; unavailable is kept. A loop opened by a newer
// Start is left alone.
func (aggregator *Aggregator) finish(done chan struct{}, cancel context.CancelFunc) {
	cancel()

	aggregator.mu.Lock()
	current := aggregator.done == done
	if current {
		aggregator.cancel, aggregator.done = nil, nil
	}
	idle := (current || aggregator.done == nil) && aggregator.status == ride.LocationTracking
	if idle {
		aggregator.status = ride.LocationIdle
	}
	aggregator.mu.Unlock()

	if idle {
		aggregator.notifyStatus(ride.LocationIdle)
	}
}

// Close stops sampling and stops merging remote positions.
func (aggregator *Aggregator) Close() {
	aggregator.Stop()

	aggregator.mu.Lock()
	unsub := aggregator.unsub
	aggregator.unsub = nil
	aggregator.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Status reports the sampling loop state.
func (aggregator *Aggregator) Status() ride.LocationStatus {
	aggregator.mu.Lock()
	defer aggregator.mu.Unlock()
	return aggregator.status
}

// Positions returns a copy of the position map keyed by rider id.
func (aggregator *Aggregator) Positions() map[string]ride.PositionSample {
	aggregator.mu.Lock()
	defer aggregator.mu.Unlock()

	out := make(map[string]ride.PositionSample, len(aggregator.positions))
	for id, sample := range aggregator.positions {
		out[id] = sample
	}
	return out
}

func (aggregator *Aggregator) sample(ctx context.Context) {
	ctx = aggregator.logger.WithRiderID(aggregator.logger.WithRideID(ctx, aggregator.sessionID), aggregator.localID)

	// 1) one fix right away
	fix, err := aggregator.locator.Current(ctx)
	if err == nil {
		err = fix.Err
	}
	if err != nil {
		aggregator.fail(ctx, err)
		return
	}
	if !aggregator.publish(ctx, fix) {
		return
	}

	// 2) then follow the device
	watch, err := aggregator.locator.Watch(ctx, aggregator.watchOpts)
	if err != nil {
		aggregator.fail(ctx, err)
		return
	}
	defer watch.Stop()

	aggregator.logger.Info(ctx, "location_watch_started", "Started location sampling", map[string]any{
		"interval_ms": aggregator.watchOpts.Interval.Milliseconds(),
	})

	for {
		select {
		case <-ctx.Done():
			aggregator.logger.Info(context.WithoutCancel(ctx), "location_watch_stopped", "Stopped location sampling", nil)
			return
		case fix, ok := <-watch.Fixes():
			if !ok {
				aggregator.fail(ctx, ErrWatchEnded)
				return
			}
			if fix.Err != nil {
				aggregator.fail(ctx, fix.Err)
				return
			}
			if !aggregator.publish(ctx, fix) {
				return
			}
		}
	}
}

// publish emits one sample. Out-of-range readings end the loop rather than
// go out on the wire.
func (aggregator *Aggregator) publish(ctx context.Context, fix ports.Fix) bool {
	if ctx.Err() != nil {
		return false
	}

	sample := ride.PositionSample{
		RiderID:    aggregator.localID,
		Position:   fix.Position,
		CapturedAt: fix.CapturedAt,
	}
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = aggregator.now().UTC()
	}
	if err := sample.Validate(); err != nil {
		aggregator.fail(ctx, fmt.Errorf("%w: %w", ports.ErrLocationUnavailable, err))
		return false
	}

	aggregator.bus.Emit(contracts.EventUserLocationUpdate, contracts.UserLocationUpdate{
		RideID:     aggregator.sessionID,
		UserID:     aggregator.localID,
		Lat:        sample.Position.Lat,
		Lon:        sample.Position.Lon,
		CapturedAt: sample.CapturedAt,
	})
	aggregator.merge(sample)

	return true
}

func (aggregator *Aggregator) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	aggregator.logger.Error(ctx, "location_unavailable", "Stopped location sampling", err, map[string]any{
		"permission_denied": errors.Is(err, ports.ErrLocationPermissionDenied),
	})
	aggregator.setStatus(ride.LocationUnavailable)
}

func (aggregator *Aggregator) handleRemote(msg ports.Message) {
	var update contracts.RiderLocationUpdate
	if err := contracts.Decode(msg.Data, &update); err != nil {
		aggregator.logger.Error(aggregator.logger.WithRideID(context.Background(), aggregator.sessionID),
			"rider_location_invalid", "Ignoring malformed rider location", err, nil)
		return
	}

	aggregator.merge(ride.PositionSample{
		RiderID:    update.UserID,
		Position:   geo.Coordinate{Lat: update.Lat, Lon: update.Lon},
		CapturedAt: update.CapturedAt,
	})
}

// merge upserts sample unless the stored one is provably newer.
func (aggregator *Aggregator) merge(sample ride.PositionSample) {
	aggregator.mu.Lock()
	if current, ok := aggregator.positions[sample.RiderID]; ok && !sample.Supersedes(current) {
		aggregator.mu.Unlock()
		return
	}
	aggregator.positions[sample.RiderID] = sample
	aggregator.mu.Unlock()

	if aggregator.onPos != nil {
		aggregator.notifyMu.Lock()
		aggregator.onPos(sample)
		aggregator.notifyMu.Unlock()
	}
}

func (aggregator *Aggregator) setStatus(status ride.LocationStatus) {
	aggregator.mu.Lock()
	if aggregator.status == status {
		aggregator.mu.Unlock()
		return
	}
	aggregator.status = status
	aggregator.mu.Unlock()

	aggregator.notifyStatus(status)
}

func (aggregator *Aggregator) notifyStatus(status ride.LocationStatus) {
	if aggregator.onStatus != nil {
		aggregator.notifyMu.Lock()
		aggregator.onStatus(status)
		aggregator.notifyMu.Unlock()
	}
}
