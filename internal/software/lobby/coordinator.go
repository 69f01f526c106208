package lobby

import (
	"context"
	"errors"
	"sync"

	"ride-convoy/internal/domain/ride"
	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/ports"
)

var ErrClosed = errors.New("lobby: coordinator closed")

// RosterObserver is called with a copy of the roster after every merge.
type RosterObserver func([]ride.Rider)

type Options struct {
	Logger   *logger.Logger
	OnRoster RosterObserver
}

// Coordinator keeps the replicated ready/not-ready roster of one ride.
// The roster only changes through full snapshots from the server; local
// toggles are requests that come back as the next snapshot.
type Coordinator struct {
	bus      ports.Bus
	session  *ride.Session
	localID  string
	logger   *logger.Logger
	onRoster RosterObserver

	mu     sync.Mutex
	roster []ride.Rider
	closed bool
	unsub  func()
}

// NewCoordinator subscribes to roster broadcasts on bus.
func NewCoordinator(bus ports.Bus, session *ride.Session, localID string, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	coordinator := &Coordinator{
		bus:      bus,
		session:  session,
		localID:  localID,
		logger:   opts.Logger,
		onRoster: opts.OnRoster,
	}
	coordinator.unsub = bus.Subscribe(contracts.EventUpdatedRidersStatus, coordinator.handleRoster)

	return coordinator
}

// ToggleLocalReadiness asks for the local rider's ready flag to be flipped
// and returns the event it emitted. The local roster is left alone until
// the server's snapshot arrives.
func (coordinator *Coordinator) ToggleLocalReadiness() (string, error) {
	coordinator.mu.Lock()
	if coordinator.closed {
		coordinator.mu.Unlock()
		return "", ErrClosed
	}
	current, _ := ride.FindRider(coordinator.roster, coordinator.localID)
	coordinator.mu.Unlock()

	event := contracts.EventRiderReady
	if current.Ready {
		event = contracts.EventRiderNotReady
	}

	coordinator.bus.Emit(event, contracts.ReadinessChange{
		RideID: coordinator.session.ID,
		UserID: coordinator.localID,
	})

	ctx := coordinator.logger.WithRiderID(coordinator.logger.WithRideID(context.Background(), coordinator.session.ID), coordinator.localID)
	coordinator.logger.Info(ctx, "readiness_toggle_requested", "Requested readiness change", map[string]any{
		"event": event,
	})

	return event, nil
}

// Roster returns a copy of the current roster.
func (coordinator *Coordinator) Roster() []ride.Rider {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	return append([]ride.Rider(nil), coordinator.roster...)
}

// AllReady reports whether the whole (non-empty) roster is ready.
func (coordinator *Coordinator) AllReady() bool {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	return ride.AllReady(coordinator.roster)
}

// LocalReady reports the local rider's flag as last seen in a snapshot.
func (coordinator *Coordinator) LocalReady() bool {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	r, _ := ride.FindRider(coordinator.roster, coordinator.localID)
	return r.Ready
}

// Close stops listening for snapshots. The last roster stays readable.
func (coordinator *Coordinator) Close() {
	coordinator.mu.Lock()
	if coordinator.closed {
		coordinator.mu.Unlock()
		return
	}
	coordinator.closed = true
	unsub := coordinator.unsub
	coordinator.mu.Unlock()

	unsub()
}

func (coordinator *Coordinator) handleRoster(msg ports.Message) {
	ctx := coordinator.logger.WithRideID(context.Background(), coordinator.session.ID)

	var snapshot contracts.RosterSnapshot
	if err := contracts.Decode(msg.Data, &snapshot); err != nil {
		coordinator.logger.Error(ctx, "roster_snapshot_invalid", "Ignoring malformed roster snapshot", err, nil)
		return
	}

	riders := make([]ride.Rider, 0, len(snapshot))
	for _, entry := range snapshot {
		riders = append(riders, ride.Rider{
			ID:          entry.User.ID,
			DisplayName: entry.User.DisplayName,
			Ready:       entry.Ready,
			IsAdmin:     coordinator.session.IsCreator(entry.User.ID),
		})
	}
	riders = ride.DedupeRiders(riders)

	coordinator.mu.Lock()
	if coordinator.closed {
		coordinator.mu.Unlock()
		return
	}
	coordinator.roster = riders
	observer := coordinator.onRoster
	coordinator.mu.Unlock()

	coordinator.logger.Debug(ctx, "roster_replaced", "Applied roster snapshot", map[string]any{
		"riders":    len(riders),
		"all_ready": ride.AllReady(riders),
	})

	if observer != nil {
		observer(append([]ride.Rider(nil), riders...))
	}
}
