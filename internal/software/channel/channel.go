package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/ports"
)

const drainTimeout = time.Second

var (
	ErrNotOpen       = errors.New("channel: no open session")
	ErrOutboundFull  = errors.New("channel: outbound buffer full, frame dropped")
	ErrEmptySession  = errors.New("channel: session key is required")
	ErrConnectFailed = errors.New("channel: connect failed")
	ErrConnLost      = errors.New("channel: connection lost")
	ErrHandlerPanic  = errors.New("channel: handler panicked")
)

// Options configures a Channel.
type Options struct {
	Logger         *logger.Logger
	OnError        func(error) // transport and delivery failures
	OnState        func(State)
	OutboundBuffer int
}

// Channel owns at most one live connection for one ride session and
// multiplexes events over it. Closing and reopening always yields a fresh
// connection with no subscriptions.
type Channel struct {
	transport ports.SessionTransport
	logger    *logger.Logger
	onError   func(error)
	onState   func(State)
	bufSize   int

	mu       sync.Mutex
	gen      uint64
	cur      *session
	handlers map[string][]subscription
	nextSub  uint64
}

type subscription struct {
	id uint64
	fn ports.Handler
}

type session struct {
	gen    uint64
	key    string
	ctx    context.Context
	cancel context.CancelFunc
	out    chan contracts.Frame
	done   chan struct{}
	state  State
}

// New builds a closed channel on top of transport.
func New(transport ports.SessionTransport, opts Options) *Channel {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.OutboundBuffer <= 0 {
		opts.OutboundBuffer = 64
	}

	return &Channel{
		transport: transport,
		logger:    opts.Logger,
		onError:   opts.OnError,
		onState:   opts.OnState,
		bufSize:   opts.OutboundBuffer,
		handlers:  make(map[string][]subscription),
	}
}

// Open starts a connection for sessionKey and returns a handle bound to it.
// Opening the key that is already open (or connecting) returns a handle to
// the same connection; opening another key tears the current one down
// first. Connection failures go to the error observer.
func (c *Channel) Open(ctx context.Context, sessionKey string) *Handle {
	sessionKey = strings.TrimSpace(sessionKey)

	c.mu.Lock()
	if sessionKey == "" {
		c.mu.Unlock()
		c.report(ErrEmptySession)
		return &Handle{ch: c}
	}

	if s := c.cur; s != nil && s.key == sessionKey && (s.state == StateConnecting || s.state == StateOpen) {
		c.mu.Unlock()
		return &Handle{ch: c, gen: s.gen}
	}

	if c.cur != nil {
		c.teardownLocked()
	}

	c.gen++
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		gen:    c.gen,
		key:    sessionKey,
		ctx:    sctx,
		cancel: cancel,
		out:    make(chan contracts.Frame, c.bufSize),
		done:   make(chan struct{}),
		state:  StateConnecting,
	}
	c.cur = s
	c.mu.Unlock()

	c.notifyState(StateConnecting)
	go c.run(s)

	return &Handle{ch: c, gen: s.gen}
}

// Close releases the connection and removes every handler. It is safe to
// call on a channel that was never opened and to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	hadSession := c.cur != nil
	c.teardownLocked()
	c.handlers = make(map[string][]subscription)
	c.mu.Unlock()

	if hadSession {
		c.notifyState(StateClosed)
	}
}

// teardownLocked cancels the current session. Caller holds c.mu.
func (c *Channel) teardownLocked() {
	if c.cur == nil {
		return
	}
	c.cur.cancel()
	c.cur.state = StateClosed
	c.cur = nil
	c.handlers = make(map[string][]subscription)
}

// State reports the state of the current connection.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return StateClosed
	}
	return c.cur.state
}

// SessionKey returns the key of the current connection, if any.
func (c *Channel) SessionKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return ""
	}
	return c.cur.key
}

// Done is closed when the current connection's goroutines have exited.
// It returns a closed channel when nothing is open.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.cur.done
}

// Subscribe registers h for event on the channel. Handlers for one event
// run in registration order.
func (c *Channel) Subscribe(event string, h ports.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSub++
	id := c.nextSub
	c.handlers[event] = append(c.handlers[event], subscription{id: id, fn: h})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.handlers[event]
		for i, sub := range subs {
			if sub.id == id {
				c.handlers[event] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(c.handlers[event]) == 0 {
			delete(c.handlers, event)
		}
	}
}

// Emit queues payload for the current connection. Frames emitted while the
// connection is still being established are sent once it is up.
func (c *Channel) Emit(event string, payload any) {
	c.emit(0, event, payload)
}

func (c *Channel) emit(gen uint64, event string, payload any) {
	frame, err := contracts.NewFrame(event, payload)
	if err != nil {
		c.report(fmt.Errorf("channel: encode %s: %w", event, err))
		return
	}

	c.mu.Lock()
	s := c.cur
	if s == nil || (gen != 0 && s.gen != gen) || s.state == StateFailed {
		c.mu.Unlock()
		c.report(fmt.Errorf("%w: dropped %s", ErrNotOpen, event))
		return
	}

	select {
	case s.out <- frame:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		c.report(fmt.Errorf("%w: %s", ErrOutboundFull, event))
	}
}

// run owns one connection from dial to teardown.
func (c *Channel) run(s *session) {
	defer close(s.done)

	ctx := c.logger.WithRideID(s.ctx, s.key)
	conn, err := c.transport.Dial(s.ctx, s.key)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		c.setState(s, StateFailed)
		c.logger.Error(ctx, "channel_connect_failed", "Failed to connect ride session channel", err, nil)
		c.report(fmt.Errorf("%w: %w", ErrConnectFailed, err))
		return
	}
	defer conn.Close()

	if !c.setState(s, StateOpen) {
		return
	}
	c.logger.Info(ctx, "channel_connected", "Ride session channel connected", map[string]any{"session_key": s.key})

	// join the session room before anything else goes out
	join, _ := contracts.NewFrame(contracts.EventJoinRide, contracts.JoinRide{RideID: s.key})
	if err := conn.Send(s.ctx, join); err != nil {
		c.fail(ctx, s, err)
		return
	}

	// the reader outlives s.ctx so queued frames can still be flushed on close
	readCtx, stopRead := context.WithCancel(context.WithoutCancel(s.ctx))
	defer stopRead()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		c.readLoop(ctx, readCtx, s, conn)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx, s, conn)
	}()

	select {
	case <-s.ctx.Done():
	case <-readerDone:
		s.cancel()
	}

	<-writerDone
	stopRead()
	_ = conn.Close()
	<-readerDone

	c.logger.Debug(context.WithoutCancel(ctx), "channel_released", "Ride session channel released", nil)
}

func (c *Channel) writeLoop(ctx context.Context, s *session, conn ports.SessionConn) {
	for {
		select {
		case <-s.ctx.Done():
			c.drain(ctx, s, conn)
			return
		case frame := <-s.out:
			if err := conn.Send(s.ctx, frame); err != nil {
				if s.ctx.Err() != nil {
					return
				}
				c.fail(ctx, s, err)
				_ = conn.Close()
				return
			}
		}
	}
}

// drain flushes frames emitted before teardown, best effort.
func (c *Channel) drain(ctx context.Context, s *session, conn ports.SessionConn) {
	c.mu.Lock()
	failed := s.state == StateFailed
	c.mu.Unlock()
	if failed {
		return
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case frame := <-s.out:
			if err := conn.Send(flushCtx, frame); err != nil {
				c.logger.Debug(context.WithoutCancel(ctx), "channel_flush_failed", "Dropped queued frame on close", map[string]any{
					"event": frame.Type,
					"error": err.Error(),
				})
				return
			}
		default:
			return
		}
	}
}

func (c *Channel) readLoop(ctx, readCtx context.Context, s *session, conn ports.SessionConn) {
	for {
		frame, err := conn.Receive(readCtx)
		if err != nil {
			if s.ctx.Err() == nil && readCtx.Err() == nil {
				c.fail(ctx, s, err)
			}
			return
		}
		c.dispatch(ctx, s, ports.Message{
			Event:      frame.Type,
			Data:       frame.Data,
			ReceivedAt: time.Now().UTC(),
		})
	}
}

// dispatch runs every handler for msg.Event in registration order on the
// reader goroutine, so handlers never overlap.
func (c *Channel) dispatch(ctx context.Context, s *session, msg ports.Message) {
	c.mu.Lock()
	if c.cur != s {
		c.mu.Unlock()
		return
	}
	subs := append([]subscription(nil), c.handlers[msg.Event]...)
	c.mu.Unlock()

	if len(subs) == 0 {
		c.logger.Debug(ctx, "channel_unhandled_event", "No handler for inbound event", map[string]any{"event": msg.Event})
		return
	}

	for _, sub := range subs {
		c.invoke(ctx, sub.fn, msg)
	}
}

func (c *Channel) invoke(ctx context.Context, h ports.Handler, msg ports.Message) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %s: %v", ErrHandlerPanic, msg.Event, r)
			c.logger.Error(ctx, "channel_handler_panic", "Event handler panicked", err, nil)
			c.report(err)
		}
	}()
	h(msg)
}

func (c *Channel) fail(ctx context.Context, s *session, err error) {
	if !c.setState(s, StateFailed) {
		return
	}
	c.logger.Error(ctx, "channel_connection_lost", "Ride session channel lost its connection", err, nil)
	c.report(fmt.Errorf("%w: %w", ErrConnLost, err))
}

// setState moves s to state if s is still the current session.
func (c *Channel) setState(s *session, state State) bool {
	c.mu.Lock()
	if c.cur != s || s.state == StateFailed || s.state == StateClosed {
		c.mu.Unlock()
		return false
	}
	s.state = state
	c.mu.Unlock()

	c.notifyState(state)
	return true
}

func (c *Channel) notifyState(state State) {
	if c.onState != nil {
		c.onState(state)
	}
}

func (c *Channel) report(err error) {
	if c.onError != nil && err != nil {
		c.onError(err)
	}
}

// Handle is a view of a Channel bound to one opened session. Once the
// channel moves on to another session the handle goes inert: Emit reports
// ErrNotOpen and Subscribe registers nothing.
type Handle struct {
	ch  *Channel
	gen uint64
}

var _ ports.Bus = (*Handle)(nil)

// Subscribe registers h while the handle's session is current.
func (h *Handle) Subscribe(event string, fn ports.Handler) func() {
	if !h.Live() {
		return func() {}
	}
	return h.ch.Subscribe(event, fn)
}

// Emit sends payload on the handle's session.
func (h *Handle) Emit(event string, payload any) {
	if h.gen == 0 {
		h.ch.report(fmt.Errorf("%w: dropped %s", ErrNotOpen, event))
		return
	}
	h.ch.emit(h.gen, event, payload)
}

// Live reports whether the handle's session is still the current one.
func (h *Handle) Live() bool {
	if h.gen == 0 {
		return false
	}
	h.ch.mu.Lock()
	defer h.ch.mu.Unlock()
	return h.ch.cur != nil && h.ch.cur.gen == h.gen
}
