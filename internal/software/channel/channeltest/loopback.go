// Package channeltest provides an in-memory relay for exercising channel
// consumers without a network.
package channeltest

import (
	"context"
	"errors"
	"sync"

	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/ports"
)

var ErrClosed = errors.New("channeltest: connection closed")

// Relay is an in-memory server. Every dialed connection joins the room of
// its session key; frames the client sends are recorded, and Push delivers
// frames to every connection in a room.
type Relay struct {
	mu      sync.Mutex
	rooms   map[string][]*Conn
	sent    []contracts.Frame
	dialErr error
	dials   int
	notify  chan struct{}
}

func NewRelay() *Relay {
	return &Relay{
		rooms:  make(map[string][]*Conn),
		notify: make(chan struct{}, 1),
	}
}

var _ ports.SessionTransport = (*Relay)(nil)

// FailDials makes subsequent Dial calls return err (nil restores them).
func (relay *Relay) FailDials(err error) {
	relay.mu.Lock()
	defer relay.mu.Unlock()
	relay.dialErr = err
}

func (relay *Relay) Dial(ctx context.Context, sessionKey string) (ports.SessionConn, error) {
	relay.mu.Lock()
	defer relay.mu.Unlock()

	relay.dials++
	if relay.dialErr != nil {
		return nil, relay.dialErr
	}

	conn := &Conn{
		relay: relay,
		key:   sessionKey,
		in:    make(chan contracts.Frame, 256),
		done:  make(chan struct{}),
	}
	relay.rooms[sessionKey] = append(relay.rooms[sessionKey], conn)
	relay.signal()
	return conn, nil
}

// Dials reports how many Dial calls were made.
func (relay *Relay) Dials() int {
	relay.mu.Lock()
	defer relay.mu.Unlock()
	return relay.dials
}

// Connections reports how many open connections are in the room.
func (relay *Relay) Connections(sessionKey string) int {
	relay.mu.Lock()
	defer relay.mu.Unlock()
	return len(relay.rooms[sessionKey])
}

// Push delivers a frame to every connection in the room.
func (relay *Relay) Push(sessionKey, event string, payload any) error {
	frame, err := contracts.NewFrame(event, payload)
	if err != nil {
		return err
	}

	relay.mu.Lock()
	conns := append([]*Conn(nil), relay.rooms[sessionKey]...)
	relay.mu.Unlock()

	for _, conn := range conns {
		select {
		case conn.in <- frame:
		case <-conn.done:
		}
	}
	return nil
}

// Drop closes every connection in the room from the server side.
func (relay *Relay) Drop(sessionKey string) {
	relay.mu.Lock()
	conns := relay.rooms[sessionKey]
	delete(relay.rooms, sessionKey)
	relay.mu.Unlock()

	for _, conn := range conns {
		conn.shutdown()
	}
}

// Sent returns every frame received from clients, in order.
func (relay *Relay) Sent() []contracts.Frame {
	relay.mu.Lock()
	defer relay.mu.Unlock()
	return append([]contracts.Frame(nil), relay.sent...)
}

// SentOf returns the frames of one event type.
func (relay *Relay) SentOf(event string) []contracts.Frame {
	var out []contracts.Frame
	for _, frame := range relay.Sent() {
		if frame.Type == event {
			out = append(out, frame)
		}
	}
	return out
}

// Changed fires (coalesced) whenever a frame is sent or a connection dialed.
func (relay *Relay) Changed() <-chan struct{} {
	return relay.notify
}

func (relay *Relay) signal() {
	select {
	case relay.notify <- struct{}{}:
	default:
	}
}

func (relay *Relay) remove(conn *Conn) {
	relay.mu.Lock()
	defer relay.mu.Unlock()
	conns := relay.rooms[conn.key]
	for i, c := range conns {
		if c == conn {
			relay.rooms[conn.key] = append(conns[:i:i], conns[i+1:]...)
			break
		}
	}
	if len(relay.rooms[conn.key]) == 0 {
		delete(relay.rooms, conn.key)
	}
}

// Conn is one client connection to a Relay.
type Conn struct {
	relay *Relay
	key   string
	in    chan contracts.Frame
	once  sync.Once
	done  chan struct{}
}

func (conn *Conn) Send(ctx context.Context, frame contracts.Frame) error {
	select {
	case <-conn.done:
		return ErrClosed
	default:
	}

	conn.relay.mu.Lock()
	conn.relay.sent = append(conn.relay.sent, frame)
	conn.relay.signal()
	conn.relay.mu.Unlock()
	return nil
}

func (conn *Conn) Receive(ctx context.Context) (contracts.Frame, error) {
	select {
	case frame := <-conn.in:
		return frame, nil
	case <-conn.done:
		return contracts.Frame{}, ErrClosed
	case <-ctx.Done():
		return contracts.Frame{}, ctx.Err()
	}
}

func (conn *Conn) Close() error {
	conn.relay.remove(conn)
	conn.shutdown()
	return nil
}

func (conn *Conn) shutdown() {
	conn.once.Do(func() { close(conn.done) })
}
