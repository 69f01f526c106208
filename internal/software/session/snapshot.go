package session

import (
	"sort"
	"time"

	"ride-convoy/internal/domain/ride"
	"ride-convoy/internal/software/route"
)

// Snapshot is a read-only view of a screen's state for the status API.
type Snapshot struct {
	RideID         string         `json:"ride_id"`
	Screen         string         `json:"screen"`
	ChannelState   string         `json:"channel_state"`
	RouteState     string         `json:"route_state,omitempty"`
	Route          *RouteView     `json:"route,omitempty"`
	Roster         []RiderView    `json:"roster,omitempty"`
	AllReady       bool           `json:"all_ready"`
	Started        bool           `json:"started"`
	StartTimeDue   bool           `json:"start_time_due,omitempty"`
	LocationStatus string         `json:"location_status,omitempty"`
	Positions      []PositionView `json:"positions,omitempty"`
	Notification   *NoticeView    `json:"notification,omitempty"`
}

type RouteView struct {
	DistanceMeters  float64 `json:"distance_m"`
	DurationSeconds float64 `json:"duration_s"`
	Distance        string  `json:"distance"`
	Duration        string  `json:"duration"`
	Points          int     `json:"points"`
	FromCache       bool    `json:"from_cache"`
}

type RiderView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Ready       bool   `json:"ready"`
	IsAdmin     bool   `json:"is_admin"`
}

type PositionView struct {
	RiderID    string     `json:"rider_id"`
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

type NoticeView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func routeView(outcome route.Outcome) *RouteView {
	if outcome.Route == nil {
		return nil
	}
	return &RouteView{
		DistanceMeters:  outcome.Route.Distance(),
		DurationSeconds: outcome.Route.Duration(),
		Distance:        ride.FormatDistance(outcome.Route.Distance()),
		Duration:        ride.FormatDuration(outcome.Route.Duration()),
		Points:          len(outcome.Route.Geometry()),
		FromCache:       outcome.FromCache,
	}
}

func rosterView(riders []ride.Rider) []RiderView {
	out := make([]RiderView, 0, len(riders))
	for _, r := range riders {
		out = append(out, RiderView{ID: r.ID, DisplayName: r.DisplayName, Ready: r.Ready, IsAdmin: r.IsAdmin})
	}
	return out
}

// positionsView orders positions by rider id for stable output.
func positionsView(positions map[string]ride.PositionSample) []PositionView {
	out := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		view := PositionView{RiderID: p.RiderID, Lat: p.Position.Lat, Lon: p.Position.Lon}
		if !p.CapturedAt.IsZero() {
			at := p.CapturedAt
			view.CapturedAt = &at
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RiderID < out[j].RiderID })
	return out
}
