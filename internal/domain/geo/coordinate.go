package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrInvalidPair      = errors.New("coordinate must be \"lat,lon\"")
)

// Validate checks the latitude and longitude ranges.
func (coordinate Coordinate) Validate() error {
	if math.IsNaN(coordinate.Lat) || coordinate.Lat < -90 || coordinate.Lat > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(coordinate.Lon) || coordinate.Lon < -180 || coordinate.Lon > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// String renders the coordinate as "lat,lon" with six decimals.
func (coordinate Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", coordinate.Lat, coordinate.Lon)
}

// ParseCoordinate parses a "lat,lon" string.
func ParseCoordinate(in string) (Coordinate, error) {
	parts := strings.Split(in, ",")
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidPair, in)
	}

	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLon != nil {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidPair, in)
	}

	coordinate := Coordinate{Lat: lat, Lon: lon}
	if err := coordinate.Validate(); err != nil {
		return Coordinate{}, err
	}
	return coordinate, nil
}

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the haversine distance between two coordinates.
func DistanceMeters(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Line returns points from a to b spaced at most stepMeters apart, both
// ends included. Interpolation is linear in degrees, which is close enough
// over city distances.
func Line(a, b Coordinate, stepMeters float64) []Coordinate {
	if stepMeters <= 0 {
		return []Coordinate{a, b}
	}
	steps := int(math.Ceil(DistanceMeters(a, b) / stepMeters))
	if steps < 1 {
		steps = 1
	}

	out := make([]Coordinate, 0, steps+1)
	for i := 0; i <= steps; i++ {
		f := float64(i) / float64(steps)
		out = append(out, Coordinate{
			Lat: a.Lat + (b.Lat-a.Lat)*f,
			Lon: a.Lon + (b.Lon-a.Lon)*f,
		})
	}
	return out
}
