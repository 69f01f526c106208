package ride

import (
	"errors"
	"testing"

	"ride-convoy/internal/domain/geo"
)

func TestNewRouteResultCopiesGeometry(t *testing.T) {
	geometry := []geo.Coordinate{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}}
	result, err := NewRouteResult(geometry, 5000, 600, "ride-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	geometry[0].Lat = 99
	got := result.Geometry()
	if got[0].Lat != 1 {
		t.Fatalf("result geometry changed with caller slice: %+v", got)
	}

	got[1].Lon = 42
	if result.Geometry()[1].Lon != 4 {
		t.Fatal("Geometry() must return a copy")
	}

	if result.Distance() != 5000 || result.Duration() != 600 || result.SessionKey() != "ride-1" {
		t.Errorf("unexpected metrics: %v %v %q", result.Distance(), result.Duration(), result.SessionKey())
	}
}

func TestNewRouteResultRejectsNegativeMetrics(t *testing.T) {
	if _, err := NewRouteResult(nil, -1, 0, ""); !errors.Is(err, ErrNegativeDistance) {
		t.Errorf("distance: err = %v", err)
	}
	if _, err := NewRouteResult(nil, 0, -1, ""); !errors.Is(err, ErrNegativeDuration) {
		t.Errorf("duration: err = %v", err)
	}
}
