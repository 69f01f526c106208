package rabbitmq

import (
	"context"
	"testing"

	"ride-convoy/internal/general/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestRoutingKeys(t *testing.T) {
	tests := []struct {
		session, event string
		wantKey        string
		wantBinding    string
	}{
		{"ride-1", "riderReady", "ride.ride-1.riderReady", "ride.ride-1.#"},
		{"a.b", "x", "ride.a%2Eb.x", "ride.a%2Eb.#"},
		{"r#*", "e.v", "ride.r%23%2A.e%2Ev", "ride.r%23%2A.#"},
		{"50%", "x", "ride.50%25.x", "ride.50%25.#"},
	}

	for _, tt := range tests {
		if got := RoutingKey(tt.session, tt.event); got != tt.wantKey {
			t.Errorf("RoutingKey(%q, %q) = %q, want %q", tt.session, tt.event, got, tt.wantKey)
		}
		if got := SessionBinding(tt.session); got != tt.wantBinding {
			t.Errorf("SessionBinding(%q) = %q, want %q", tt.session, got, tt.wantBinding)
		}
	}
}

func TestSessionBindingsDoNotCollide(t *testing.T) {
	keys := []string{"ride.7", "ride_7", "ride%2E7", "ride*7", "ride#7", "ride%7"}
	seen := make(map[string]string, len(keys))
	for _, key := range keys {
		binding := SessionBinding(key)
		if other, ok := seen[binding]; ok {
			t.Fatalf("%q and %q share binding %q", key, other, binding)
		}
		seen[binding] = key
	}
}

func TestAMQPURLEscapesCredentials(t *testing.T) {
	got := amqpURL("guest", "p@ss/word", "mq", 5672)
	want := "amqp://guest:p%40ss%2Fword@mq:5672/"
	if got != want {
		t.Fatalf("amqpURL = %q, want %q", got, want)
	}
}

func TestAcceptFiltersEchoesAndGarbage(t *testing.T) {
	client := &Client{appID: "me", logger: logger.Discard(), logCtx: context.Background()}
	conn := &Conn{client: client, sessionKey: "ride-1"}

	if _, ok := conn.accept(amqp.Delivery{AppId: "me", Body: []byte(`{"type":"riderReady"}`)}); ok {
		t.Fatal("own message should be dropped")
	}
	if _, ok := conn.accept(amqp.Delivery{AppId: "other", Body: []byte(`not json`)}); ok {
		t.Fatal("malformed body should be dropped")
	}

	frame, ok := conn.accept(amqp.Delivery{AppId: "other", Body: []byte(`{"type":"riderJoined","data":{"displayName":"Ann"}}`)})
	if !ok || frame.Type != "riderJoined" {
		t.Fatalf("frame = %+v, ok = %v", frame, ok)
	}
}
