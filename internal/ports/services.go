package ports

import (
	"context"

	"ride-convoy/internal/domain/geo"
)

// RouteCandidate is one route returned by a routing provider.
type RouteCandidate struct {
	Geometry        []geo.Coordinate
	DistanceMeters  float64
	DurationSeconds float64
}

// RouteProvider queries an external routing engine. Candidates are ranked
// by preference; an empty slice means no route exists.
type RouteProvider interface {
	Route(ctx context.Context, start, end geo.Coordinate) ([]RouteCandidate, error)
}
