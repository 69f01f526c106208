package session

import (
	"context"
	"sync"
	"time"

	"ride-convoy/internal/domain/ride"
	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/ports"
	"ride-convoy/internal/software/channel"
	"ride-convoy/internal/software/live"
	"ride-convoy/internal/software/presence"
)

type LiveOptions struct {
	Logger         *logger.Logger
	DisplayName    string
	Watch          ports.WatchOptions
	NoticeDuration time.Duration
	AfterFunc      presence.AfterFunc
	OnNotice       func(ride.PresenceEvent)
	OnStatus       func(ride.LocationStatus)
	OnPosition     func(ride.PositionSample)
}

// Live is the in-ride screen: positions of every rider plus join/leave
// notices, over one session channel.
type Live struct {
	channel     *channel.Channel
	handle      *channel.Handle
	session     *ride.Session
	localID     string
	displayName string
	logger      *logger.Logger
	aggregator  *live.Aggregator
	notices     *presence.Queue
	detach      func()

	mu     sync.Mutex
	closed bool
}

// OpenLive joins the session channel, announces the local rider and starts
// sampling the device position.
func OpenLive(ctx context.Context, ch *channel.Channel, locator ports.Locator, session *ride.Session, localID string, opts LiveOptions) *Live {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	handle := ch.Open(ctx, session.ID)

	screen := &Live{
		channel:     ch,
		handle:      handle,
		session:     session,
		localID:     localID,
		displayName: opts.DisplayName,
		logger:      opts.Logger,
	}
	screen.notices = presence.NewQueue(presence.Options{
		Logger:    opts.Logger.Named("presence"),
		Duration:  opts.NoticeDuration,
		AfterFunc: opts.AfterFunc,
		OnShow:    opts.OnNotice,
	})
	screen.detach = screen.notices.Attach(handle)
	screen.aggregator = live.New(handle, locator, session.ID, localID, live.Options{
		Logger:     opts.Logger.Named("live-location"),
		Watch:      opts.Watch,
		OnStatus:   opts.OnStatus,
		OnPosition: opts.OnPosition,
	})

	handle.Emit(contracts.EventUserJoined, contracts.PresenceAnnouncement{RideID: session.ID, DisplayName: opts.DisplayName})
	screen.aggregator.Start(ctx)

	ctx = screen.logger.WithRiderID(screen.logger.WithRideID(ctx, session.ID), localID)
	screen.logger.Info(ctx, "live_opened", "Joined the live ride", nil)

	return screen
}

func (screen *Live) LocationStatus() ride.LocationStatus { return screen.aggregator.Status() }

func (screen *Live) Positions() map[string]ride.PositionSample { return screen.aggregator.Positions() }

// Notice returns the presence notice on screen, if any.
func (screen *Live) Notice() (ride.PresenceEvent, bool) { return screen.notices.Current() }

// Snapshot reports the live screen state.
func (screen *Live) Snapshot() Snapshot {
	snapshot := Snapshot{
		RideID:         screen.session.ID,
		Screen:         "live",
		ChannelState:   screen.channel.State().String(),
		Started:        true,
		LocationStatus: screen.aggregator.Status().String(),
		Positions:      positionsView(screen.aggregator.Positions()),
	}
	if event, ok := screen.notices.Current(); ok {
		snapshot.Notification = &NoticeView{ID: event.ID, Text: event.Text()}
	}
	return snapshot
}

// Close announces the departure, then stops sampling, notices and the
// channel. Queued frames are flushed before the connection goes away.
func (screen *Live) Close() {
	screen.mu.Lock()
	if screen.closed {
		screen.mu.Unlock()
		return
	}
	screen.closed = true
	screen.mu.Unlock()

	screen.handle.Emit(contracts.EventUserLeft, contracts.PresenceAnnouncement{RideID: screen.session.ID, DisplayName: screen.displayName})
	screen.aggregator.Close()
	screen.detach()
	screen.notices.Close()
	screen.channel.Close()

	ctx := screen.logger.WithRiderID(screen.logger.WithRideID(context.Background(), screen.session.ID), screen.localID)
	screen.logger.Info(ctx, "live_closed", "Left the live ride", nil)
}
