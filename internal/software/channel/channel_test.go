package channel_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/ports"
	"ride-convoy/internal/software/channel"
	"ride-convoy/internal/software/channel/channeltest"
)

type errSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *errSink) add(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *errSink) has(target error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, err := range s.errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func newChannel(t *testing.T) (*channel.Channel, *channeltest.Relay, *errSink) {
	t.Helper()
	relay := channeltest.NewRelay()
	sink := &errSink{}
	ch := channel.New(relay, channel.Options{OnError: sink.add})
	t.Cleanup(ch.Close)
	return ch, relay, sink
}

func TestOpenSendsJoinRideFirst(t *testing.T) {
	ch, relay, _ := newChannel(t)

	h := ch.Open(context.Background(), "ride-1")
	h.Emit(contracts.EventRiderReady, contracts.ReadinessChange{RideID: "ride-1", UserID: "u1"})

	channeltest.Eventually(t, func() bool { return len(relay.Sent()) == 2 }, "two frames sent")

	sent := relay.Sent()
	if sent[0].Type != contracts.EventJoinRide {
		t.Fatalf("first frame = %q, want joinRide", sent[0].Type)
	}
	var join contracts.JoinRide
	if err := contracts.Decode(sent[0].Data, &join); err != nil || join.RideID != "ride-1" {
		t.Fatalf("join payload = %+v, %v", join, err)
	}
	if sent[1].Type != contracts.EventRiderReady {
		t.Fatalf("second frame = %q", sent[1].Type)
	}
	if ch.State() != channel.StateOpen {
		t.Fatalf("state = %s", ch.State())
	}
}

func TestOpenSameKeyIsIdempotent(t *testing.T) {
	ch, relay, _ := newChannel(t)

	first := ch.Open(context.Background(), "ride-1")
	second := ch.Open(context.Background(), "ride-1")

	channeltest.Eventually(t, func() bool { return relay.Connections("ride-1") == 1 }, "connected")
	if relay.Dials() != 1 {
		t.Fatalf("dials = %d, want 1", relay.Dials())
	}
	if !first.Live() || !second.Live() {
		t.Fatal("both handles should be live")
	}
}

func TestOpenOtherKeyTearsDownPrevious(t *testing.T) {
	ch, relay, _ := newChannel(t)

	old := ch.Open(context.Background(), "ride-1")
	channeltest.Eventually(t, func() bool { return relay.Connections("ride-1") == 1 }, "ride-1 connected")

	var got []string
	var mu sync.Mutex
	old.Subscribe("ping", func(ports.Message) {
		mu.Lock()
		got = append(got, "old")
		mu.Unlock()
	})

	fresh := ch.Open(context.Background(), "ride-2")
	channeltest.Eventually(t, func() bool {
		return relay.Connections("ride-1") == 0 && relay.Connections("ride-2") == 1
	}, "switched rooms")

	if old.Live() {
		t.Fatal("old handle should be inert")
	}
	if !fresh.Live() {
		t.Fatal("new handle should be live")
	}
	if ch.SessionKey() != "ride-2" {
		t.Fatalf("session key = %q", ch.SessionKey())
	}

	// handlers from the old session are gone
	_ = relay.Push("ride-2", "ping", nil)
	done := make(chan struct{})
	fresh.Subscribe("marker", func(ports.Message) { close(done) })
	_ = relay.Push("ride-2", "marker", nil)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 0 {
		t.Fatalf("old handler ran: %v", got)
	}
}

func TestHandlersRunInRegistrationAndArrivalOrder(t *testing.T) {
	ch, relay, _ := newChannel(t)
	h := ch.Open(context.Background(), "ride-1")
	channeltest.Eventually(t, func() bool { return relay.Connections("ride-1") == 1 }, "connected")

	var mu sync.Mutex
	var order []string
	record := func(tag string) ports.Handler {
		return func(msg ports.Message) {
			var n contracts.PresenceNotice
			_ = contracts.Decode(msg.Data, &n)
			mu.Lock()
			order = append(order, tag+":"+n.DisplayName)
			mu.Unlock()
		}
	}

	h.Subscribe(contracts.EventRiderJoined, record("a"))
	h.Subscribe(contracts.EventRiderJoined, record("b"))

	_ = relay.Push("ride-1", contracts.EventRiderJoined, contracts.PresenceNotice{DisplayName: "Ann"})
	_ = relay.Push("ride-1", contracts.EventRiderJoined, contracts.PresenceNotice{DisplayName: "Bo"})

	channeltest.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 4
	}, "four deliveries")

	want := []string{"a:Ann", "b:Ann", "a:Bo", "b:Bo"}
	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ch, relay, _ := newChannel(t)
	h := ch.Open(context.Background(), "ride-1")
	channeltest.Eventually(t, func() bool { return relay.Connections("ride-1") == 1 }, "connected")

	var mu sync.Mutex
	count := 0
	unsubscribe := h.Subscribe("tick", func(ports.Message) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	unsubscribe()
	unsubscribe()

	done := make(chan struct{})
	h.Subscribe("marker", func(ports.Message) { close(done) })
	_ = relay.Push("ride-1", "tick", nil)
	_ = relay.Push("ride-1", "marker", nil)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("unsubscribed handler ran %d times", count)
	}
}

func TestCloseIsIdempotentAndResetsSubscriptions(t *testing.T) {
	ch, relay, sink := newChannel(t)

	ch.Close() // never opened

	h := ch.Open(context.Background(), "ride-1")
	h.Subscribe("tick", func(ports.Message) { t.Error("handler survived close") })
	channeltest.Eventually(t, func() bool { return relay.Connections("ride-1") == 1 }, "connected")

	ch.Close()
	ch.Close()
	<-ch.Done()

	if ch.State() != channel.StateClosed {
		t.Fatalf("state = %s", ch.State())
	}
	channeltest.Eventually(t, func() bool { return relay.Connections("ride-1") == 0 }, "released")

	h.Emit("tick", nil)
	if !sink.has(channel.ErrNotOpen) {
		t.Fatal("emit after close should report ErrNotOpen")
	}

	reopened := ch.Open(context.Background(), "ride-1")
	channeltest.Eventually(t, func() bool { return relay.Connections("ride-1") == 1 }, "reconnected")

	done := make(chan struct{})
	reopened.Subscribe("marker", func(ports.Message) { close(done) })
	_ = relay.Push("ride-1", "tick", nil)
	_ = relay.Push("ride-1", "marker", nil)
	<-done
}

func TestDialFailureReportsAndMarksFailed(t *testing.T) {
	ch, relay, sink := newChannel(t)
	relay.FailDials(errors.New("refused"))

	ch.Open(context.Background(), "ride-1")

	channeltest.Eventually(t, func() bool { return ch.State() == channel.StateFailed }, "failed state")
	if !sink.has(channel.ErrConnectFailed) {
		t.Fatal("connect failure was not reported")
	}

	// a failed session can be reopened
	relay.FailDials(nil)
	ch.Open(context.Background(), "ride-1")
	channeltest.Eventually(t, func() bool { return ch.State() == channel.StateOpen }, "reopened")
}

func TestServerDropReportsConnectionLost(t *testing.T) {
	ch, relay, sink := newChannel(t)
	ch.Open(context.Background(), "ride-1")
	channeltest.Eventually(t, func() bool { return relay.Connections("ride-1") == 1 }, "connected")

	relay.Drop("ride-1")

	channeltest.Eventually(t, func() bool { return sink.has(channel.ErrConnLost) }, "loss reported")
	if ch.State() != channel.StateFailed {
		t.Fatalf("state = %s", ch.State())
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	ch, relay, sink := newChannel(t)
	h := ch.Open(context.Background(), "ride-1")
	channeltest.Eventually(t, func() bool { return relay.Connections("ride-1") == 1 }, "connected")

	h.Subscribe("boom", func(ports.Message) { panic("bad payload") })
	done := make(chan struct{})
	h.Subscribe("boom", func(ports.Message) { close(done) })

	_ = relay.Push("ride-1", "boom", nil)
	<-done

	if !sink.has(channel.ErrHandlerPanic) {
		t.Fatal("panic was not reported")
	}
}

func TestEmptySessionKeyIsRejected(t *testing.T) {
	ch, relay, sink := newChannel(t)

	h := ch.Open(context.Background(), "  ")
	h.Emit("tick", nil)

	if !sink.has(channel.ErrEmptySession) {
		t.Fatal("empty key was not reported")
	}
	if relay.Dials() != 0 {
		t.Fatalf("dials = %d", relay.Dials())
	}
}

func TestCloseFlushesQueuedFrames(t *testing.T) {
	ch, relay, _ := newChannel(t)
	h := ch.Open(context.Background(), "ride-1")
	channeltest.Eventually(t, func() bool { return relay.Connections("ride-1") == 1 }, "connected")

	done := ch.Done()
	h.Emit(contracts.EventUserLeft, contracts.PresenceAnnouncement{RideID: "ride-1", DisplayName: "Ann"})
	ch.Close()
	<-done

	if n := len(relay.SentOf(contracts.EventUserLeft)); n != 1 {
		t.Fatalf("userLeft sent %d times, want 1", n)
	}
}
