package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"ride-convoy/internal/domain/ride"
	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/ports"
	"ride-convoy/internal/software/channel"
	"ride-convoy/internal/software/lobby"
	"ride-convoy/internal/software/route"
)

var (
	ErrNotCreator    = errors.New("only the ride creator can start the ride")
	ErrRouteNotReady = errors.New("the route has not been resolved")
	ErrScreenClosed  = errors.New("screen is closed")
)

// StartDecision is the answer to a start request. Started is true when
// adminStartedTheRide went out; AllReady is informational since the
// creator may start without everyone ready.
type StartDecision struct {
	Started  bool
	AllReady bool
	Reason   error
}

type LobbyOptions struct {
	Logger    *logger.Logger
	OnRoster  lobby.RosterObserver
	OnRoute   func(route.Outcome)
	OnStarted func(rideID string) // rideStartedByAdmin received
}

// Lobby is the pre-ride screen: it owns the session channel, the
// readiness roster and the route to the meeting point.
type Lobby struct {
	channel     *channel.Channel
	handle      *channel.Handle
	session     *ride.Session
	localID     string
	coordinator *lobby.Coordinator
	logger      *logger.Logger
	onRoute     func(route.Outcome)
	onStarted   func(string)

	cancel    context.CancelFunc
	routeDone chan struct{}
	unsub     func()

	mu      sync.Mutex
	outcome route.Outcome
	started bool
	closed  bool
}

// OpenLobby opens the session channel and starts resolving the route from
// the device's position to the destination.
func OpenLobby(ctx context.Context, ch *channel.Channel, resolver *route.Resolver, locator ports.Locator, session *ride.Session, localID string, opts LobbyOptions) *Lobby {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	ctx, cancel := context.WithCancel(ctx)
	handle := ch.Open(ctx, session.ID)

	screen := &Lobby{
		channel:   ch,
		handle:    handle,
		session:   session,
		localID:   localID,
		logger:    opts.Logger,
		onRoute:   opts.OnRoute,
		onStarted: opts.OnStarted,
		cancel:    cancel,
		routeDone: make(chan struct{}),
		outcome:   route.Outcome{State: ride.RouteStatePending},
	}
	screen.coordinator = lobby.NewCoordinator(handle, session, localID, lobby.Options{
		Logger:   opts.Logger,
		OnRoster: opts.OnRoster,
	})
	screen.unsub = handle.Subscribe(contracts.EventRideStartedByAdmin, screen.handleStarted)

	go screen.resolveRoute(ctx, resolver, locator)

	return screen
}

func (screen *Lobby) resolveRoute(ctx context.Context, resolver *route.Resolver, locator ports.Locator) {
	defer close(screen.routeDone)

	outcome := route.Outcome{State: ride.RouteStateUnavailable}
	fix, err := locator.Current(ctx)
	if err == nil {
		err = fix.Err
	}
	if err != nil {
		screen.logger.Error(screen.logger.WithRideID(ctx, screen.session.ID), "route_origin_unavailable", "No device position to route from", err, nil)
	} else {
		outcome = resolver.Resolve(ctx, fix.Position, screen.session.Destination, screen.session.ID)
	}

	screen.mu.Lock()
	if screen.closed {
		screen.mu.Unlock()
		return
	}
	screen.outcome = outcome
	screen.mu.Unlock()

	if screen.onRoute != nil {
		screen.onRoute(outcome)
	}
}

// RouteDone is closed once the route lookup has finished either way.
func (screen *Lobby) RouteDone() <-chan struct{} {
	return screen.routeDone
}

// Route returns the current route outcome (pending until resolved).
func (screen *Lobby) Route() route.Outcome {
	screen.mu.Lock()
	defer screen.mu.Unlock()
	return screen.outcome
}

// ToggleReady flips the local rider's ready flag through the server.
func (screen *Lobby) ToggleReady() (string, error) {
	return screen.coordinator.ToggleLocalReadiness()
}

func (screen *Lobby) Roster() []ride.Rider { return screen.coordinator.Roster() }

func (screen *Lobby) AllReady() bool { return screen.coordinator.AllReady() }

func (screen *Lobby) LocalReady() bool { return screen.coordinator.LocalReady() }

// Started reports whether rideStartedByAdmin has been received.
func (screen *Lobby) Started() bool {
	screen.mu.Lock()
	defer screen.mu.Unlock()
	return screen.started
}

// StartRide sends adminStartedTheRide if the local rider created the
// session and the route is known.
func (screen *Lobby) StartRide() StartDecision {
	decision := StartDecision{AllReady: screen.coordinator.AllReady()}

	screen.mu.Lock()
	closed, state := screen.closed, screen.outcome.State
	screen.mu.Unlock()

	switch {
	case closed:
		decision.Reason = ErrScreenClosed
	case !screen.session.IsCreator(screen.localID):
		decision.Reason = ErrNotCreator
	case state != ride.RouteStateResolved:
		decision.Reason = ErrRouteNotReady
	default:
		screen.handle.Emit(contracts.EventAdminStartedRide, contracts.AdminStartedRide{RideID: screen.session.ID})
		decision.Started = true
	}

	ctx := screen.logger.WithRiderID(screen.logger.WithRideID(context.Background(), screen.session.ID), screen.localID)
	if decision.Started {
		screen.logger.Info(ctx, "ride_start_sent", "Sent ride start", map[string]any{"all_ready": decision.AllReady})
	} else {
		screen.logger.Info(ctx, "ride_start_refused", decision.Reason.Error(), nil)
	}

	return decision
}

func (screen *Lobby) handleStarted(ports.Message) {
	screen.mu.Lock()
	if screen.closed || screen.started {
		screen.mu.Unlock()
		return
	}
	screen.started = true
	screen.mu.Unlock()

	screen.logger.Info(screen.logger.WithRideID(context.Background(), screen.session.ID), "ride_started_by_admin", "Ride started by its creator", nil)
	if screen.onStarted != nil {
		screen.onStarted(screen.session.ID)
	}
}

// Snapshot reports the lobby state.
func (screen *Lobby) Snapshot() Snapshot {
	screen.mu.Lock()
	outcome, started := screen.outcome, screen.started
	screen.mu.Unlock()

	return Snapshot{
		RideID:       screen.session.ID,
		Screen:       "lobby",
		ChannelState: screen.channel.State().String(),
		RouteState:   outcome.State.String(),
		Route:        routeView(outcome),
		Roster:       rosterView(screen.coordinator.Roster()),
		AllReady:     screen.coordinator.AllReady(),
		Started:      started,
		StartTimeDue: screen.session.HasStarted(time.Now()),
	}
}

// Close stops the route lookup, the roster and the channel.
func (screen *Lobby) Close() {
	screen.mu.Lock()
	if screen.closed {
		screen.mu.Unlock()
		return
	}
	screen.closed = true
	screen.mu.Unlock()

	screen.cancel()
	screen.unsub()
	screen.coordinator.Close()
	screen.channel.Close()
}
