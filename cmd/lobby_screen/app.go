package lobbyscreen

import (
	"context"

	livescreen "ride-convoy/cmd/live_screen"
	"ride-convoy/internal/app"
	"ride-convoy/internal/cli"
	"ride-convoy/internal/domain/ride"
	"ride-convoy/internal/general/config"
	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/ports"
	"ride-convoy/internal/software/live"
	"ride-convoy/internal/software/route"
	"ride-convoy/internal/software/session"

	"golang.org/x/sync/errgroup"
)

// Run wires the lobby screen and blocks until ctx is cancelled. With
// args.Follow it moves on to the live screen once the ride starts.
func Run(ctx context.Context, args cli.SessionArgs) error {
	// set up a new logger and context with a static request ID for startup logs
	logger := logger.New("lobby-screen")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(args.ConfigPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	rideSession, locator, err := livescreen.SessionFromArgs(args)
	if err != nil {
		logger.Error(ctx, "session_invalid", "Invalid ride session", err, nil)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Status.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		return rt.Status.Shutdown(context.WithoutCancel(gctx))
	})
	g.Go(func() error {
		started, outcome := show(gctx, rt, rideSession, locator, args)
		if !started || !args.Follow {
			return nil
		}
		return livescreen.Show(gctx, rt, rideSession, followRoute(locator, outcome))
	})

	return g.Wait()
}

// followRoute makes the simulated device ride the resolved route when
// there is one.
func followRoute(fallback ports.Locator, outcome route.Outcome) ports.Locator {
	if outcome.Route == nil {
		return fallback
	}
	walker, err := live.NewRouteWalker(outcome.Route.Geometry())
	if err != nil {
		return fallback
	}
	return walker
}

// show runs the lobby until the ride starts or ctx ends and reports
// whether the ride started along with the last route outcome.
func show(ctx context.Context, rt *app.Runtime, rideSession *ride.Session, locator ports.Locator, args cli.SessionArgs) (bool, route.Outcome) {
	log := rt.Logger
	logCtx := log.WithRiderID(log.WithRideID(context.WithoutCancel(ctx), rideSession.ID), rt.Identity.RiderID)

	rosterSeen := make(chan struct{}, 1)
	started := make(chan struct{}, 1)

	screen := session.OpenLobby(ctx, rt.Channel, rt.Resolver, locator, rideSession, rt.Identity.RiderID, session.LobbyOptions{
		Logger: log,
		OnRoster: func(riders []ride.Rider) {
			log.Info(logCtx, "roster_updated", "Roster updated", map[string]any{"riders": len(riders)})
			select {
			case rosterSeen <- struct{}{}:
			default:
			}
		},
		OnRoute: func(outcome route.Outcome) {
			details := map[string]any{"state": outcome.State.String(), "from_cache": outcome.FromCache}
			if outcome.Route != nil {
				details["distance"] = ride.FormatDistance(outcome.Route.Distance())
				details["duration"] = ride.FormatDuration(outcome.Route.Duration())
			}
			log.Info(logCtx, "route_outcome", "Route to the meeting point", details)
		},
		OnStarted: func(string) {
			select {
			case started <- struct{}{}:
			default:
			}
		},
	})
	remove := rt.Registry.Set(rideSession.ID, screen)
	defer func() {
		remove()
		screen.Close()
	}()

	var readyWait <-chan struct{}
	if args.AutoReady {
		readyWait = rosterSeen
	}
	var routeDone <-chan struct{}
	if args.AutoStart {
		routeDone = screen.RouteDone()
	}

	for {
		select {
		case <-ctx.Done():
			return false, screen.Route()

		case <-readyWait:
			readyWait = nil
			if !screen.LocalReady() {
				if _, err := screen.ToggleReady(); err != nil {
					log.Error(logCtx, "ready_toggle_failed", "Failed to mark ready", err, nil)
				}
			}

		case <-routeDone:
			routeDone = nil
			decision := screen.StartRide()
			if decision.Reason != nil {
				log.Error(logCtx, "ride_start_refused", "Could not start the ride", decision.Reason, nil)
			}

		case <-started:
			log.Info(logCtx, "ride_started", "Ride started", nil)
			return true, screen.Route()
		}
	}
}
