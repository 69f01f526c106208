package ride

import (
	"errors"
	"strings"
	"time"

	"ride-convoy/internal/domain/geo"
)

// Session is one ride a group is converging on. It is owned by the
// screen-level controller; core components only see the parts they need.
type Session struct {
	ID             string
	Name           string
	Destination    geo.Coordinate
	ScheduledStart time.Time
	CreatorID      string
	Riders         []Rider
}

var ErrSessionIDRequired = errors.New("ride session id is required")

// NewSession validates the identifier and destination and returns a session
// with an empty roster.
func NewSession(id string, destination geo.Coordinate, scheduledStart time.Time, creatorID string) (*Session, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, ErrSessionIDRequired
	}
	if err := destination.Validate(); err != nil {
		return nil, err
	}

	return &Session{
		ID:             id,
		Destination:    destination,
		ScheduledStart: scheduledStart,
		CreatorID:      strings.TrimSpace(creatorID),
	}, nil
}

// IsCreator reports whether riderID created the session.
func (session *Session) IsCreator(riderID string) bool {
	return session.CreatorID != "" && session.CreatorID == riderID
}

// HasStarted reports whether the scheduled start is at or before now.
// A session without a scheduled start has not started.
func (session *Session) HasStarted(now time.Time) bool {
	if session.ScheduledStart.IsZero() {
		return false
	}
	return !now.Before(session.ScheduledStart)
}
