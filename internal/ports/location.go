package ports

import (
	"context"
	"errors"
	"time"

	"ride-convoy/internal/domain/geo"
)

var (
	ErrLocationPermissionDenied = errors.New("location permission denied")
	ErrLocationUnavailable      = errors.New("location unavailable")
)

// Fix is one device position reading. A non-nil Err ends the watch.
type Fix struct {
	Position   geo.Coordinate
	CapturedAt time.Time
	Err        error
}

// WatchOptions tunes push-based location updates.
type WatchOptions struct {
	Interval          time.Duration
	MinDistanceMeters float64
}

// LocationWatch is a live device subscription. Fixes is closed once the
// watch ends; Stop releases the subscription and may be called repeatedly.
type LocationWatch interface {
	Fixes() <-chan Fix
	Stop()
}

// Locator is the device location source.
type Locator interface {
	Current(ctx context.Context) (Fix, error)
	Watch(ctx context.Context, opts WatchOptions) (LocationWatch, error)
}
