package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// newConsumerChannel returns a fresh channel with prefetch (QoS) applied.
func (client *Client) newConsumerChannel(prefetch int) (*amqp.Channel, error) {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("rabbitmq: set QoS (prefetch=%d): %w", prefetch, err)
		}
	}

	return ch, nil
}

// consumeSession opens a channel with a private queue bound to the session
// and starts consuming it with manual acks.
func (client *Client) consumeSession(sessionKey string, prefetch int) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := client.newConsumerChannel(prefetch)
	if err != nil {
		return nil, nil, err
	}

	queue, err := declareSessionQueue(ch, client.exchange, sessionKey)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}

	deliveries, err := ch.Consume(
		queue,
		"",    // consumer tag
		false, // autoAck
		true,  // exclusive
		false, // noLocal (ignored by RabbitMQ)
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("rabbitmq: consume(%s): %w", queue, err)
	}

	return ch, deliveries, nil
}
