package geo

import "math"

// Bounds is the south-west / north-east box enclosing a set of coordinates.
type Bounds struct {
	SouthWest Coordinate `json:"south_west"`
	NorthEast Coordinate `json:"north_east"`
}

// BoundsOf returns the smallest box that contains every point.
// The zero Bounds is returned for an empty input.
func BoundsOf(points ...Coordinate) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}

	b := Bounds{SouthWest: points[0], NorthEast: points[0]}
	for _, p := range points[1:] {
		b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
		b.SouthWest.Lon = math.Min(b.SouthWest.Lon, p.Lon)
		b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
		b.NorthEast.Lon = math.Max(b.NorthEast.Lon, p.Lon)
	}
	return b
}

// Contains reports whether c lies inside the box (edges included).
func (b Bounds) Contains(c Coordinate) bool {
	return c.Lat >= b.SouthWest.Lat && c.Lat <= b.NorthEast.Lat &&
		c.Lon >= b.SouthWest.Lon && c.Lon <= b.NorthEast.Lon
}
