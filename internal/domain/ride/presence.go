package ride

import (
	"strings"
	"time"
)

// PresenceKind tells whether a rider joined or left the live screen.
type PresenceKind string

const (
	PresenceJoined PresenceKind = "joined"
	PresenceLeft   PresenceKind = "left"
)

// Valid reports whether kind is joined or left.
func (kind PresenceKind) Valid() bool {
	return kind == PresenceJoined || kind == PresenceLeft
}

// String returns the string representation of the PresenceKind.
func (kind PresenceKind) String() string {
	return string(kind)
}

// PresenceEvent is a transient join/leave notice. Events are never merged:
// two identical notices are shown twice.
type PresenceEvent struct {
	ID          string
	Kind        PresenceKind
	DisplayName string
	CreatedAt   time.Time
}

// Text is the human readable notice, e.g. "Alice joined the ride".
func (event PresenceEvent) Text() string {
	name := strings.TrimSpace(event.DisplayName)
	if name == "" {
		name = "A rider"
	}
	return name + " " + event.Kind.String() + " the ride"
}
