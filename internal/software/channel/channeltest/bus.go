package channeltest

import (
	"encoding/json"
	"sync"
	"time"

	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/ports"
)

// Emitted is one recorded Emit call, payload already encoded.
type Emitted struct {
	Event string
	Data  json.RawMessage
}

// Bus is a synchronous ports.Bus: Deliver runs handlers on the caller's
// goroutine and Emit only records.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]*busSub
	emitted  []Emitted
}

type busSub struct {
	fn     ports.Handler
	active bool
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]*busSub)}
}

var _ ports.Bus = (*Bus)(nil)

func (bus *Bus) Subscribe(event string, h ports.Handler) func() {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	sub := &busSub{fn: h, active: true}
	bus.handlers[event] = append(bus.handlers[event], sub)
	return func() {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		sub.active = false
	}
}

func (bus *Bus) Emit(event string, payload any) {
	frame, err := contracts.NewFrame(event, payload)
	if err != nil {
		panic(err)
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.emitted = append(bus.emitted, Emitted{Event: frame.Type, Data: frame.Data})
}

// Deliver encodes payload and hands it to every active handler of event.
func (bus *Bus) Deliver(event string, payload any) {
	frame, err := contracts.NewFrame(event, payload)
	if err != nil {
		panic(err)
	}

	bus.mu.Lock()
	var fns []ports.Handler
	for _, sub := range bus.handlers[event] {
		if sub.active {
			fns = append(fns, sub.fn)
		}
	}
	bus.mu.Unlock()

	msg := ports.Message{Event: event, Data: frame.Data, ReceivedAt: time.Now().UTC()}
	for _, fn := range fns {
		fn(msg)
	}
}

// Emitted returns every recorded emit in order.
func (bus *Bus) Emitted() []Emitted {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return append([]Emitted(nil), bus.emitted...)
}

// Subscribers counts active handlers for event.
func (bus *Bus) Subscribers(event string) int {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	n := 0
	for _, sub := range bus.handlers[event] {
		if sub.active {
			n++
		}
	}
	return n
}
