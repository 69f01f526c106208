package geo

import (
	"errors"
	"math"
	"testing"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		in      string
		want    Coordinate
		wantErr error
	}{
		{in: "-32.10,115.75", want: Coordinate{Lat: -32.10, Lon: 115.75}},
		{in: " 12.9716 , 77.5946 ", want: Coordinate{Lat: 12.9716, Lon: 77.5946}},
		{in: "12.9716", wantErr: ErrInvalidPair},
		{in: "abc,1", wantErr: ErrInvalidPair},
		{in: "91,0", wantErr: ErrInvalidLatitude},
		{in: "0,181", wantErr: ErrInvalidLongitude},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCoordinate(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDistanceMeters(t *testing.T) {
	a := Coordinate{Lat: -32.10, Lon: 115.75}
	if d := DistanceMeters(a, a); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}

	// one degree of latitude is roughly 111.2 km
	d := DistanceMeters(Coordinate{Lat: 0, Lon: 0}, Coordinate{Lat: 1, Lon: 0})
	if math.Abs(d-111195) > 100 {
		t.Errorf("distance = %v, want ~111195", d)
	}
}

func TestBoundsOf(t *testing.T) {
	b := BoundsOf(
		Coordinate{Lat: -32.10, Lon: 115.75},
		Coordinate{Lat: -32.11, Lon: 115.76},
	)
	want := Bounds{
		SouthWest: Coordinate{Lat: -32.11, Lon: 115.75},
		NorthEast: Coordinate{Lat: -32.10, Lon: 115.76},
	}
	if b != want {
		t.Fatalf("got %+v, want %+v", b, want)
	}
	if !b.Contains(Coordinate{Lat: -32.105, Lon: 115.755}) {
		t.Error("midpoint should be inside bounds")
	}
	if BoundsOf() != (Bounds{}) {
		t.Error("empty input should give zero bounds")
	}
}

func TestLine(t *testing.T) {
	a := Coordinate{Lat: 0, Lon: 0}
	b := Coordinate{Lat: 0, Lon: 0.01} // about 1.1 km

	points := Line(a, b, 200)
	if len(points) != 7 {
		t.Fatalf("len = %d, want 7", len(points))
	}
	if points[0] != a || points[len(points)-1] != b {
		t.Fatalf("ends = %v .. %v", points[0], points[len(points)-1])
	}
	for i := 1; i < len(points); i++ {
		if d := DistanceMeters(points[i-1], points[i]); d > 200 {
			t.Fatalf("step %d is %.1fm", i, d)
		}
	}

	if got := Line(a, a, 100); len(got) != 2 {
		t.Fatalf("zero-length line = %v", got)
	}
}
