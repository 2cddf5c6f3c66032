package events

import (
	"fmt"
	"sync"

	"github.com/agentstation/inkwell/pkg/errors"
)

var errClosedGroup = fmt.Errorf("events: subscription group: %w", errors.ErrClosed)

// Group owns the subscriptions of one view. Close removes all of them.
type Group struct {
	bus Subscriber

	mu      sync.Mutex
	handles []Handle
	closed  bool
}

// NewGroup creates a Group that subscribes on bus.
func NewGroup(bus Subscriber) *Group {
	return &Group{bus: bus}
}

// Subscribe registers h on the underlying bus and tracks the handle.
func (g *Group) Subscribe(t EventType, h Handler) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return Handle{}, errClosedGroup
	}
	handle, err := g.bus.Subscribe(t, h)
	if err != nil {
		return Handle{}, err
	}
	g.handles = append(g.handles, handle)
	return handle, nil
}

// Len returns the number of live subscriptions owned by the group.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}

// Close unsubscribes every handler in the group. It is idempotent.
func (g *Group) Close() {
	g.mu.Lock()
	handles := g.handles
	g.handles = nil
	g.closed = true
	g.mu.Unlock()

	for _, h := range handles {
		g.bus.Unsubscribe(h)
	}
}
