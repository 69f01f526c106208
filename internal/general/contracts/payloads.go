package contracts

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// JoinRide is sent when a connection for a ride session is established.
type JoinRide struct {
	RideID string `json:"rideId" validate:"required"`
}

// PresenceAnnouncement is sent when the local rider enters or leaves the live screen.
type PresenceAnnouncement struct {
	RideID      string `json:"rideId" validate:"required"`
	DisplayName string `json:"displayName"`
}

// PresenceNotice is broadcast when another rider enters or leaves.
type PresenceNotice struct {
	DisplayName string `json:"displayName"`
}

// ReadinessChange asks the server to flip one rider's ready flag.
type ReadinessChange struct {
	RideID string `json:"rideId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

// RiderUser is the user part of a roster entry.
type RiderUser struct {
	ID          string `json:"_id" validate:"required"`
	DisplayName string `json:"displayName"`
}

// RiderSnapshot is one roster entry of an updatedRidersStatus broadcast.
type RiderSnapshot struct {
	User  RiderUser `json:"user"`
	Ready bool      `json:"ready"`
}

// RosterSnapshot is the full roster carried by updatedRidersStatus.
type RosterSnapshot []RiderSnapshot

// UserLocationUpdate is the local rider's position sample.
type UserLocationUpdate struct {
	RideID     string    `json:"rideId" validate:"required"`
	UserID     string    `json:"userId" validate:"required"`
	Lat        float64   `json:"lat" validate:"latitude"`
	Lon        float64   `json:"lon" validate:"longitude"`
	CapturedAt time.Time `json:"capturedAt,omitzero"`
}

// RiderLocationUpdate is another rider's position sample relayed by the server.
type RiderLocationUpdate struct {
	UserID     string    `json:"userId" validate:"required"`
	Lat        float64   `json:"lat" validate:"latitude"`
	Lon        float64   `json:"lon" validate:"longitude"`
	CapturedAt time.Time `json:"capturedAt,omitzero"`
}

// AdminStartedRide is sent by the ride creator to start the ride.
type AdminStartedRide struct {
	RideID string `json:"rideId" validate:"required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Decode unmarshals data into out and validates struct tags. Slices are
// validated element by element.
func Decode(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return fmt.Errorf("decode %T: empty payload", out)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %T: %w", out, err)
	}

	v := payloadValidator()
	switch p := out.(type) {
	case *RosterSnapshot:
		for i := range *p {
			if err := v.Struct((*p)[i]); err != nil {
				return fmt.Errorf("roster entry %d: %w", i, err)
			}
		}
		return nil
	default:
		if err := v.Struct(out); err != nil {
			return fmt.Errorf("validate %T: %w", out, err)
		}
		return nil
	}
}
