package livescreen

import (
	"context"
	"fmt"

	"ride-convoy/internal/app"
	"ride-convoy/internal/cli"
	"ride-convoy/internal/domain/ride"
	"ride-convoy/internal/general/config"
	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/ports"
	"ride-convoy/internal/software/live"
	"ride-convoy/internal/software/session"

	"golang.org/x/sync/errgroup"
)

// Run wires the live screen and blocks until ctx is cancelled.
func Run(ctx context.Context, args cli.SessionArgs) error {
	// set up a new logger and context with a static request ID for startup logs
	logger := logger.New("live-screen")
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

	rideSession, locator, err := SessionFromArgs(args)
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
	g.Go(func() error { return Show(gctx, rt, rideSession, locator) })

	return g.Wait()
}

// SessionFromArgs builds the ride session and the simulated device.
func SessionFromArgs(args cli.SessionArgs) (*ride.Session, *live.RouteWalker, error) {
	rideSession, err := ride.NewSession(args.RideID, args.Destination, args.ScheduledStart, args.CreatorID)
	if err != nil {
		return nil, nil, err
	}
	rideSession.Name = args.RideName

	walker, err := live.NewRouteWalker(args.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("device path: %w", err)
	}
	return rideSession, walker, nil
}

// Show runs the live screen on rt's channel until ctx ends.
func Show(ctx context.Context, rt *app.Runtime, rideSession *ride.Session, locator ports.Locator) error {
	log := rt.Logger
	logCtx := log.WithRiderID(log.WithRideID(context.WithoutCancel(ctx), rideSession.ID), rt.Identity.RiderID)

	screen := session.OpenLive(ctx, rt.Channel, locator, rideSession, rt.Identity.RiderID, session.LiveOptions{
		Logger:         log,
		DisplayName:    rt.Identity.DisplayName,
		NoticeDuration: rt.Config.Notifications.DisplayDuration,
		Watch: ports.WatchOptions{
			Interval:          rt.Config.Location.Interval,
			MinDistanceMeters: rt.Config.Location.MinDistanceMeters,
		},
		OnNotice: func(event ride.PresenceEvent) {
			log.Info(logCtx, "presence_notice", event.Text(), nil)
		},
		OnStatus: func(status ride.LocationStatus) {
			log.Info(logCtx, "location_status", "Location sampling "+status.String(), nil)
		},
		OnPosition: func(sample ride.PositionSample) {
			log.Debug(logCtx, "rider_position", "Rider position updated", map[string]any{
				"rider_id": sample.RiderID,
				"position": sample.Position.String(),
			})
		},
	})
	remove := rt.Registry.Set(rideSession.ID, screen)

	<-ctx.Done()

	remove()
	screen.Close()
	return nil
}
