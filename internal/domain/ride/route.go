package ride

import (
	"errors"

	"ride-convoy/internal/domain/geo"
)

// RouteState is the closed set of states a route lookup can be in.
type RouteState string

const (
	RouteStatePending     RouteState = "pending"
	RouteStateResolved    RouteState = "resolved"
	RouteStateUnavailable RouteState = "unavailable"
)

// Valid reports whether state is one of the route state constants.
func (state RouteState) Valid() bool {
	switch state {
	case RouteStatePending, RouteStateResolved, RouteStateUnavailable:
		return true
	default:
		return false
	}
}

// String returns the string representation of the RouteState.
func (state RouteState) String() string {
	return string(state)
}

// RouteResult is a resolved route. It is never mutated after creation; a
// new resolution for the same session key supersedes it.
type RouteResult struct {
	geometry   []geo.Coordinate
	distance   float64
	duration   float64
	sessionKey string
}

var (
	ErrNegativeDistance = errors.New("route distance cannot be negative")
	ErrNegativeDuration = errors.New("route duration cannot be negative")
)

// NewRouteResult copies the geometry so later changes to the caller's slice
// cannot leak into the result.
func NewRouteResult(geometry []geo.Coordinate, distanceMeters, durationSeconds float64, sessionKey string) (*RouteResult, error) {
	if distanceMeters < 0 {
		return nil, ErrNegativeDistance
	}
	if durationSeconds < 0 {
		return nil, ErrNegativeDuration
	}

	return &RouteResult{
		geometry:   append([]geo.Coordinate(nil), geometry...),
		distance:   distanceMeters,
		duration:   durationSeconds,
		sessionKey: sessionKey,
	}, nil
}

// Geometry returns a copy of the route polyline.
func (result *RouteResult) Geometry() []geo.Coordinate {
	return append([]geo.Coordinate(nil), result.geometry...)
}

// Distance is the trip length in meters.
func (result *RouteResult) Distance() float64 { return result.distance }

// Duration is the trip time in seconds.
func (result *RouteResult) Duration() float64 { return result.duration }

// SessionKey is the key the result was resolved (and possibly cached) for.
func (result *RouteResult) SessionKey() string { return result.sessionKey }
