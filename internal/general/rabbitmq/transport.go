package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrConsumerClosed = errors.New("rabbitmq: session consumer closed")

// Transport carries ride session frames over a topic exchange. Each Dial
// gets its own queue; frames published by the same client are filtered
// out on receipt.
type Transport struct {
	client   *Client
	prefetch int
}

var _ ports.SessionTransport = (*Transport)(nil)

func NewTransport(client *Client) *Transport {
	return &Transport{client: client, prefetch: 32}
}

func (t *Transport) Dial(ctx context.Context, sessionKey string) (ports.SessionConn, error) {
	ch, deliveries, err := t.client.consumeSession(sessionKey, t.prefetch)
	if err != nil {
		t.client.logger.Error(t.client.logger.WithRideID(ctx, sessionKey), "rabbitmq_session_consume_failed", "Failed to open session consumer", err, nil)
		return nil, err
	}

	t.client.logger.Info(t.client.logger.WithRideID(ctx, sessionKey), "rabbitmq_session_joined", "Bound session queue", map[string]any{
		"binding": SessionBinding(sessionKey),
	})

	return &Conn{
		client:     t.client,
		sessionKey: sessionKey,
		ch:         ch,
		deliveries: deliveries,
		chClosed:   ch.NotifyClose(make(chan *amqp.Error, 1)),
		done:       make(chan struct{}),
	}, nil
}

// Conn is one session subscription plus the publisher it sends through.
type Conn struct {
	client     *Client
	sessionKey string
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	chClosed   chan *amqp.Error
	closeOnce  sync.Once
	done       chan struct{}
}

func (conn *Conn) Send(ctx context.Context, frame contracts.Frame) error {
	select {
	case <-conn.done:
		return ErrConsumerClosed
	default:
	}

	body, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.client.Publish(ctx, RoutingKey(conn.sessionKey, frame.Type), body)
}

func (conn *Conn) Receive(ctx context.Context) (contracts.Frame, error) {
	for {
		select {
		case <-ctx.Done():
			return contracts.Frame{}, ctx.Err()
		case <-conn.done:
			return contracts.Frame{}, ErrConsumerClosed
		case cerr := <-conn.chClosed:
			if cerr != nil {
				return contracts.Frame{}, cerr
			}
			return contracts.Frame{}, ErrConsumerClosed
		case d, ok := <-conn.deliveries:
			if !ok {
				return contracts.Frame{}, ErrConsumerClosed
			}
			_ = d.Ack(false)

			frame, keep := conn.accept(d)
			if !keep {
				continue
			}
			return frame, nil
		}
	}
}

// accept drops our own echoes and anything that is not a frame.
func (conn *Conn) accept(d amqp.Delivery) (contracts.Frame, bool) {
	if d.AppId == conn.client.AppID() {
		return contracts.Frame{}, false
	}
	frame, err := contracts.DecodeFrame(d.Body)
	if err != nil {
		conn.client.logger.Debug(conn.client.logCtx, "rabbitmq_bad_frame", "Dropped malformed session message", map[string]any{
			"routing_key": d.RoutingKey,
		})
		return contracts.Frame{}, false
	}
	return frame, true
}

func (conn *Conn) Close() error {
	var err error
	conn.closeOnce.Do(func() {
		close(conn.done)
		err = conn.ch.Close()
	})
	return err
}
