package ports

import (
	"context"
	"encoding/json"
	"time"

	"ride-convoy/internal/general/contracts"
)

// Message is one inbound event delivered by a session channel.
type Message struct {
	Event      string
	Data       json.RawMessage
	ReceivedAt time.Time
}

// Handler consumes inbound messages. Handlers for one channel run one at a
// time, in arrival order.
type Handler func(Message)

// Bus is the publish/subscribe surface of a ride session channel.
type Bus interface {
	// Subscribe registers h for event and returns a func that removes it.
	Subscribe(event string, h Handler) (unsubscribe func())
	// Emit sends payload tagged with event to the other participants.
	// Delivery is fire-and-forget; failures go to the channel's error observer.
	Emit(event string, payload any)
}

// SessionTransport opens one connection for a ride session.
type SessionTransport interface {
	Dial(ctx context.Context, sessionKey string) (SessionConn, error)
}

// SessionConn is a connected, bidirectional frame stream. Send may run
// concurrently with Receive but not with itself; Close unblocks both.
type SessionConn interface {
	Send(ctx context.Context, frame contracts.Frame) error
	Receive(ctx context.Context) (contracts.Frame, error)
	Close() error
}

// SessionTransportFunc adapts a function to SessionTransport.
type SessionTransportFunc func(ctx context.Context, sessionKey string) (SessionConn, error)

func (fn SessionTransportFunc) Dial(ctx context.Context, sessionKey string) (SessionConn, error) {
	return fn(ctx, sessionKey)
}
