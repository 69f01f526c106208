package ride

import (
	"testing"
	"time"

	"ride-convoy/internal/domain/geo"
)

func TestPositionSampleSupersedes(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	at := func(ts time.Time) PositionSample {
		return PositionSample{RiderID: "u1", Position: geo.Coordinate{Lat: 1, Lon: 1}, CapturedAt: ts}
	}

	tests := []struct {
		name     string
		incoming PositionSample
		current  PositionSample
		want     bool
	}{
		{name: "unstamped incoming", incoming: at(time.Time{}), current: at(t0), want: true},
		{name: "unstamped current", incoming: at(t0), current: at(time.Time{}), want: true},
		{name: "newer", incoming: at(t0.Add(time.Second)), current: at(t0), want: true},
		{name: "same instant", incoming: at(t0), current: at(t0), want: true},
		{name: "older", incoming: at(t0.Add(-time.Second)), current: at(t0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.incoming.Supersedes(tt.current); got != tt.want {
				t.Errorf("Supersedes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPresenceEventText(t *testing.T) {
	e := PresenceEvent{Kind: PresenceJoined, DisplayName: "Ann"}
	if got := e.Text(); got != "Ann joined the ride" {
		t.Errorf("Text() = %q", got)
	}
	e = PresenceEvent{Kind: PresenceLeft}
	if got := e.Text(); got != "A rider left the ride" {
		t.Errorf("Text() = %q", got)
	}
}

func TestFormat(t *testing.T) {
	if got := FormatDistance(5000); got != "5.0 km" {
		t.Errorf("FormatDistance = %q", got)
	}
	if got := FormatDistance(1234); got != "1.2 km" {
		t.Errorf("FormatDistance = %q", got)
	}
	if got := FormatDuration(600); got != "10 min" {
		t.Errorf("FormatDuration = %q", got)
	}
	if got := FormatDuration(4500); got != "1 h 15 min" {
		t.Errorf("FormatDuration = %q", got)
	}
}
