package ride

import (
	"errors"
	"strings"
	"time"

	"ride-convoy/internal/domain/geo"
)

// PositionSample is the latest known position of one rider.
type PositionSample struct {
	RiderID    string
	Position   geo.Coordinate
	CapturedAt time.Time // zero when the sender did not stamp the sample
}

var ErrPositionRiderRequired = errors.New("position sample needs a rider id")

// Validate checks the rider id and coordinate ranges.
func (sample PositionSample) Validate() error {
	if strings.TrimSpace(sample.RiderID) == "" {
		return ErrPositionRiderRequired
	}
	return sample.Position.Validate()
}

// Supersedes reports whether sample may replace current. Arrival order
// decides unless both samples are stamped, in which case a strictly older
// capture time is rejected.
func (sample PositionSample) Supersedes(current PositionSample) bool {
	if sample.CapturedAt.IsZero() || current.CapturedAt.IsZero() {
		return true
	}
	return !sample.CapturedAt.Before(current.CapturedAt)
}

// LocationStatus is the closed set of states of the local sampling loop.
type LocationStatus string

const (
	LocationIdle        LocationStatus = "idle"
	LocationTracking    LocationStatus = "tracking"
	LocationUnavailable LocationStatus = "unavailable"
)

// String returns the string representation of the LocationStatus.
func (status LocationStatus) String() string {
	return string(status)
}
