package lobby

import (
	"testing"
	"time"

	"ride-convoy/internal/domain/geo"
	"ride-convoy/internal/domain/ride"
	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/software/channel/channeltest"
)

func newSession(t *testing.T) *ride.Session {
	t.Helper()
	session, err := ride.NewSession("ride-1", geo.Coordinate{Lat: -32.11, Lon: 115.76}, time.Time{}, "u1")
	if err != nil {
		t.Fatal(err)
	}
	return session
}

func snapshot(entries ...contracts.RiderSnapshot) contracts.RosterSnapshot {
	return contracts.RosterSnapshot(entries)
}

func entry(id, name string, ready bool) contracts.RiderSnapshot {
	return contracts.RiderSnapshot{User: contracts.RiderUser{ID: id, DisplayName: name}, Ready: ready}
}

func TestToggleEmitsNegationWithoutMutating(t *testing.T) {
	bus := channeltest.NewBus()
	coordinator := NewCoordinator(bus, newSession(t), "u2", Options{})

	event, err := coordinator.ToggleLocalReadiness()
	if err != nil {
		t.Fatal(err)
	}
	if event != contracts.EventRiderReady {
		t.Fatalf("event = %q, want riderReady for an unknown rider", event)
	}
	if coordinator.LocalReady() {
		t.Fatal("toggle must not change local state")
	}

	bus.Deliver(contracts.EventUpdatedRidersStatus, snapshot(entry("u1", "Ann", false), entry("u2", "Bo", true)))

	event, _ = coordinator.ToggleLocalReadiness()
	if event != contracts.EventRiderNotReady {
		t.Fatalf("event = %q, want riderNotReady once ready", event)
	}

	emitted := bus.Emitted()
	if len(emitted) != 2 {
		t.Fatalf("emitted %d events", len(emitted))
	}
	var change contracts.ReadinessChange
	if err := contracts.Decode(emitted[1].Data, &change); err != nil {
		t.Fatal(err)
	}
	if change.RideID != "ride-1" || change.UserID != "u2" {
		t.Fatalf("payload = %+v", change)
	}
}

func TestSnapshotReplacesRoster(t *testing.T) {
	bus := channeltest.NewBus()
	var observed [][]ride.Rider
	coordinator := NewCoordinator(bus, newSession(t), "u2", Options{
		OnRoster: func(r []ride.Rider) { observed = append(observed, r) },
	})

	bus.Deliver(contracts.EventUpdatedRidersStatus, snapshot(entry("u1", "Ann", true), entry("u2", "Bo", false), entry("u3", "Cy", true)))
	bus.Deliver(contracts.EventUpdatedRidersStatus, snapshot(entry("u2", "Bo", true), entry("u1", "Ann", true)))

	roster := coordinator.Roster()
	if len(roster) != 2 {
		t.Fatalf("roster = %+v, want the last snapshot only", roster)
	}
	if roster[0].ID != "u2" || roster[1].ID != "u1" {
		t.Fatalf("order = %+v", roster)
	}
	if !roster[1].IsAdmin || roster[0].IsAdmin {
		t.Fatalf("admin flag should follow the creator: %+v", roster)
	}
	if !coordinator.AllReady() {
		t.Fatal("all riders are ready")
	}
	if len(observed) != 2 {
		t.Fatalf("observer called %d times", len(observed))
	}
}

func TestSnapshotDeduplicatesRiders(t *testing.T) {
	bus := channeltest.NewBus()
	coordinator := NewCoordinator(bus, newSession(t), "u2", Options{})

	bus.Deliver(contracts.EventUpdatedRidersStatus, snapshot(
		entry("u1", "Ann", false),
		entry("u2", "Bo", false),
		entry("u1", "", true),
	))

	roster := coordinator.Roster()
	if len(roster) != 2 {
		t.Fatalf("roster = %+v", roster)
	}
	if roster[0].DisplayName != "Ann" || !roster[0].Ready {
		t.Fatalf("merged entry = %+v", roster[0])
	}
}

func TestAllReadyEdgeCases(t *testing.T) {
	bus := channeltest.NewBus()
	coordinator := NewCoordinator(bus, newSession(t), "u2", Options{})

	if coordinator.AllReady() {
		t.Fatal("empty roster must not be ready")
	}

	bus.Deliver(contracts.EventUpdatedRidersStatus, snapshot(entry("u1", "Ann", true), entry("u2", "Bo", false)))
	if coordinator.AllReady() {
		t.Fatal("one rider is not ready")
	}

	bus.Deliver(contracts.EventUpdatedRidersStatus, snapshot())
	if coordinator.AllReady() || len(coordinator.Roster()) != 0 {
		t.Fatal("empty snapshot clears the roster and is not ready")
	}
}

func TestMalformedSnapshotKeepsRoster(t *testing.T) {
	bus := channeltest.NewBus()
	coordinator := NewCoordinator(bus, newSession(t), "u2", Options{})

	bus.Deliver(contracts.EventUpdatedRidersStatus, snapshot(entry("u1", "Ann", true)))
	bus.Deliver(contracts.EventUpdatedRidersStatus, []map[string]any{{"user": map[string]any{"displayName": "no id"}}})
	bus.Deliver(contracts.EventUpdatedRidersStatus, nil)

	roster := coordinator.Roster()
	if len(roster) != 1 || roster[0].ID != "u1" {
		t.Fatalf("roster = %+v", roster)
	}
}

func TestCloseStopsMerging(t *testing.T) {
	bus := channeltest.NewBus()
	coordinator := NewCoordinator(bus, newSession(t), "u2", Options{})

	coordinator.Close()
	coordinator.Close()

	if bus.Subscribers(contracts.EventUpdatedRidersStatus) != 0 {
		t.Fatal("subscription left behind")
	}
	if _, err := coordinator.ToggleLocalReadiness(); err != ErrClosed {
		t.Fatalf("err = %v", err)
	}
}
