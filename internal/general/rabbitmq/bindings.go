package rabbitmq

import (
	"fmt"
	"strings"

	"ride-convoy/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

func declareTopology(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

// declareSessionQueue creates a private queue for one client and binds it
// to every event of the session.
func declareSessionQueue(ch *amqp.Channel, exchange, sessionKey string) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("declare session queue: %w", err)
	}

	binding := SessionBinding(sessionKey)
	if err := ch.QueueBind(q.Name, binding, exchange, false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s to %s (%s): %w", q.Name, exchange, binding, err)
	}
	return q.Name, nil
}

// RoutingKey is the key an event of a session is published with:
// ride.{session_key}.{event}.
func RoutingKey(sessionKey, event string) string {
	return contracts.RouteSessionPrefix + escapeWord(sessionKey) + "." + escapeWord(event)
}

// SessionBinding matches every event of a session.
func SessionBinding(sessionKey string) string {
	return contracts.RouteSessionPrefix + escapeWord(sessionKey) + ".#"
}

// escapeWord keeps a value inside a single topic word. The escape is
// percent-encoding, so distinct keys never share a word.
var wordEscaper = strings.NewReplacer("%", "%25", ".", "%2E", "*", "%2A", "#", "%23")

func escapeWord(s string) string {
	return wordEscaper.Replace(s)
}
