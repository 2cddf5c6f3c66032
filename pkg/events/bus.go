package events

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell/pkg/clock"
	"github.com/agentstation/inkwell/pkg/logging"
)

// Emitter is the publishing side of a Bus.
type Emitter interface {
	Emit(t EventType, data any) error
}

// Subscriber is the subscribing side of a Bus.
type Subscriber interface {
	Subscribe(t EventType, h Handler) (Handle, error)
	Unsubscribe(h Handle) bool
}

// Handle identifies one subscription.
type Handle struct {
	id  uint64
	typ EventType
}

// Type returns the event type the subscription listens to.
func (h Handle) Type() EventType { return h.typ }

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.id == 0 }

type registration struct {
	id uint64
	fn Handler
}

// Bus is a synchronous publish/subscribe dispatcher. It is safe for
// concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]registration
	nextID uint64

	clock  clock.Clock
	logger *zerolog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithClock sets the clock used to stamp events.
func WithClock(c clock.Clock) Option {
	return func(b *Bus) { b.clock = clock.OrReal(c) }
}

// WithLogger sets the logger that receives handler failures.
func WithLogger(logger *zerolog.Logger) Option {
	return func(b *Bus) { b.logger = logging.Component(logger, "events") }
}

// NewBus creates an empty Bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[EventType][]registration),
		clock:  clock.Real(),
		logger: logging.Component(nil, "events"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for events of type t. The same function may be
// subscribed several times; each call returns its own Handle.
func (b *Bus) Subscribe(t EventType, h Handler) (Handle, error) {
	if err := validate(t); err != nil {
		return Handle{}, err
	}
	if h == nil {
		return Handle{}, fmt.Errorf("events: nil handler for %s", t)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[t] = append(b.subs[t], registration{id: b.nextID, fn: h})
	return Handle{id: b.nextID, typ: t}, nil
}

// Unsubscribe removes the subscription identified by h. It reports
// whether the subscription was still registered. Removing a handler
// during delivery does not affect the delivery in progress.
func (b *Bus) Unsubscribe(h Handle) bool {
	if h.IsZero() {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.subs[h.typ]
	for i, r := range regs {
		if r.id != h.id {
			continue
		}
		// Copy so snapshots held by in-flight emits keep their view.
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, h.typ)
		} else {
			b.subs[h.typ] = next
		}
		return true
	}
	return false
}

// Emit delivers an event to every handler subscribed to t when Emit is
// called, in subscription order, on the caller's goroutine. A panicking
// handler is logged and skipped.
func (b *Bus) Emit(t EventType, data any) error {
	if err := validate(t); err != nil {
		return err
	}

	b.mu.RLock()
	snapshot := b.subs[t]
	b.mu.RUnlock()

	event := Event{Type: t, Timestamp: b.clock.Now(), Data: data}
	for _, r := range snapshot {
		b.deliver(r, event)
	}

	b.logger.Debug().
		Str("event_type", string(t)).
		Int("subscribers", len(snapshot)).
		Msg("Event emitted")
	return nil
}

func (b *Bus) deliver(r registration, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error().
				Str("event_type", string(event.Type)).
				Interface("panic", rec).
				Msg("Event handler failed")
		}
	}()
	r.fn(event)
}

// Count returns the number of handlers subscribed to t.
func (b *Bus) Count(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}
