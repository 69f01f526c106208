package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrNotConnected = errors.New("rabbitmq: connection is not open")
	ErrNotAcked     = errors.New("rabbitmq: publish not acknowledged")
)

// Publish sends body to the session exchange and waits for the broker's
// confirm. Every message is stamped with the client's AppID.
func (client *Client) Publish(ctx context.Context, routingKey string, body []byte) error {
	client.mu.RLock()
	ch := client.pubChan
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() || ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := ch.PublishWithContext(ctx, client.exchange, routingKey, false /* mandatory */, false, /* immediate */
		amqp.Publishing{
			DeliveryMode: amqp.Transient,
			ContentType:  "application/json",
			AppId:        client.appID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", routingKey, err)
	}

	select {
	case c, ok := <-confirms:
		if !ok {
			return ErrNotConnected
		}
		if !c.Ack {
			return ErrNotAcked
		}
	case <-ctx.Done():
		// keep the confirm stream aligned: consume exactly one confirm even on timeout
		select {
		case c, ok := <-confirms:
			if ok && !c.Ack {
				return ErrNotAcked
			}
		case <-time.After(2 * time.Second):
		}
		return ctx.Err()
	}

	return nil
}
