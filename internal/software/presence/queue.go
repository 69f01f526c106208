package presence

import (
	"context"
	"sync"
	"time"

	"ride-convoy/internal/domain/ride"
	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/ports"

	"github.com/google/uuid"
)

// State of the notification display.
type State string

const (
	StateIdle    State = "idle"
	StateShowing State = "showing"
)

// String returns the string representation of the State.
func (state State) String() string {
	return string(state)
}

// Timer is the part of *time.Timer the queue uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d; time.AfterFunc in production.
type AfterFunc func(d time.Duration, f func()) Timer

type Options struct {
	Logger    *logger.Logger
	Duration  time.Duration // display time per notice, default 2s
	AfterFunc AfterFunc
	Now       func() time.Time
	// OnShow and OnHide run serialized with queue transitions and must not
	// call back into the queue.
	OnShow func(ride.PresenceEvent)
	OnHide func(ride.PresenceEvent)
}

// Queue shows presence notices one at a time, in arrival order, each for
// a fixed duration.
type Queue struct {
	logger    *logger.Logger
	duration  time.Duration
	afterFunc AfterFunc
	now       func() time.Time
	onShow    func(ride.PresenceEvent)
	onHide    func(ride.PresenceEvent)

	// transition is held across a state change and its callbacks so
	// observers see show/hide strictly alternating.
	transition sync.Mutex

	mu      sync.Mutex
	pending []ride.PresenceEvent // head is on screen while showing
	showing bool
	timer   Timer
	gen     uint64
	closed  bool
}

func NewQueue(opts Options) *Queue {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Duration <= 0 {
		opts.Duration = 2 * time.Second
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Queue{
		logger:    opts.Logger,
		duration:  opts.Duration,
		afterFunc: opts.AfterFunc,
		now:       opts.Now,
		onShow:    opts.OnShow,
		onHide:    opts.OnHide,
	}
}

// Enqueue appends event and shows it at once if nothing is on screen.
func (queue *Queue) Enqueue(event ride.PresenceEvent) {
	queue.transition.Lock()
	defer queue.transition.Unlock()

	queue.mu.Lock()
	if queue.closed {
		queue.mu.Unlock()
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = queue.now().UTC()
	}
	queue.pending = append(queue.pending, event)
	shown, ok := queue.advanceLocked()
	queue.mu.Unlock()

	if ok {
		queue.show(shown)
	}
}

// advanceLocked starts showing the head if idle. Caller holds mu.
func (queue *Queue) advanceLocked() (ride.PresenceEvent, bool) {
	if queue.showing || len(queue.pending) == 0 {
		return ride.PresenceEvent{}, false
	}

	queue.showing = true
	queue.gen++
	gen := queue.gen
	queue.timer = queue.afterFunc(queue.duration, func() { queue.expire(gen) })

	return queue.pending[0], true
}

// expire hides the head and moves on to the next notice.
func (queue *Queue) expire(gen uint64) {
	queue.transition.Lock()
	defer queue.transition.Unlock()

	queue.mu.Lock()
	if queue.closed || !queue.showing || gen != queue.gen {
		queue.mu.Unlock()
		return
	}
	hidden := queue.pending[0]
	queue.pending[0] = ride.PresenceEvent{}
	queue.pending = queue.pending[1:]
	queue.showing = false
	queue.timer = nil
	next, ok := queue.advanceLocked()
	queue.mu.Unlock()

	if queue.onHide != nil {
		queue.onHide(hidden)
	}
	if ok {
		queue.show(next)
	}
}

func (queue *Queue) show(event ride.PresenceEvent) {
	queue.logger.Debug(context.Background(), "presence_notice_shown", event.Text(), map[string]any{
		"event_id": event.ID,
		"kind":     event.Kind.String(),
	})
	if queue.onShow != nil {
		queue.onShow(event)
	}
}

// State reports whether a notice is on screen.
func (queue *Queue) State() State {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.showing {
		return StateShowing
	}
	return StateIdle
}

// Current returns the notice on screen, if any.
func (queue *Queue) Current() (ride.PresenceEvent, bool) {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	if !queue.showing {
		return ride.PresenceEvent{}, false
	}
	return queue.pending[0], true
}

// Len counts queued notices including the one on screen.
func (queue *Queue) Len() int {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.pending)
}

// Close cancels the display timer and drops everything queued.
func (queue *Queue) Close() {
	queue.transition.Lock()
	defer queue.transition.Unlock()

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.closed {
		return
	}
	queue.closed = true
	if queue.timer != nil {
		queue.timer.Stop()
		queue.timer = nil
	}
	queue.pending = nil
	queue.showing = false
}

// Attach feeds the queue from presence broadcasts on bus. The returned
// func detaches it.
func (queue *Queue) Attach(bus ports.Bus) func() {
	handler := func(kind ride.PresenceKind) ports.Handler {
		return func(msg ports.Message) {
			var notice contracts.PresenceNotice
			if len(msg.Data) > 0 {
				if err := contracts.Decode(msg.Data, &notice); err != nil {
					queue.logger.Error(context.Background(), "presence_notice_invalid", "Ignoring malformed presence notice", err, map[string]any{
						"event": msg.Event,
					})
					return
				}
			}
			queue.Enqueue(ride.PresenceEvent{
				Kind:        kind,
				DisplayName: notice.DisplayName,
				CreatedAt:   msg.ReceivedAt,
			})
		}
	}

	unsubs := []func(){
		bus.Subscribe(contracts.EventRiderJoined, handler(ride.PresenceJoined)),
		bus.Subscribe(contracts.EventRiderLeft, handler(ride.PresenceLeft)),
		bus.Subscribe(contracts.EventUserJoined, handler(ride.PresenceJoined)),
		bus.Subscribe(contracts.EventUserLeft, handler(ride.PresenceLeft)),
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
