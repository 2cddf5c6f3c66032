// Package connectivity tracks whether the content service is reachable.
//
// A Monitor holds the current state and notifies listeners once per
// transition. It is a gate, not a queue: callers read IsOnline at the
// moment they want to act. A Prober feeds a Monitor from periodic HTTP
// health checks.
package connectivity

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell/pkg/logging"
)

// Transition is a change of connectivity state.
type Transition string

// Transitions.
const (
	WentOnline  Transition = "went-online"
	WentOffline Transition = "went-offline"
)

// Online reports whether the transition leaves the monitor online.
func (t Transition) Online() bool { return t == WentOnline }

// Listener receives transitions.
type Listener func(Transition)

// Handle identifies a registered Listener.
type Handle uint64

// Checker is the read side of a Monitor.
type Checker interface {
	IsOnline() bool
}

// Watcher is a Checker that also reports transitions.
type Watcher interface {
	Checker
	OnChange(fn Listener) Handle
	Remove(h Handle) bool
}

type listener struct {
	id Handle
	fn Listener
}

// Monitor holds the online state. It is safe for concurrent use.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	listeners []listener
	nextID    Handle

	// notify serializes listener delivery so transitions arrive in order.
	notify sync.Mutex

	logger *zerolog.Logger
}

// NewMonitor creates a Monitor in the given initial state.
func NewMonitor(online bool, logger *zerolog.Logger) *Monitor {
	return &Monitor{
		online: online,
		logger: logging.Component(logger, "connectivity"),
	}
}

// IsOnline returns the current state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers fn for future transitions.
func (m *Monitor) OnChange(fn Listener) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.listeners = append(m.listeners, listener{id: m.nextID, fn: fn})
	return m.nextID
}

// Remove deregisters the listener identified by h.
func (m *Monitor) Remove(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.listeners {
		if l.id == h {
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Set records an observation of the state. Listeners run only when the
// observation changes the state, on the caller's goroutine. Listeners
// must not call Set.
func (m *Monitor) Set(online bool) {
	m.notify.Lock()
	defer m.notify.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	snapshot := make([]listener, len(m.listeners))
	copy(snapshot, m.listeners)
	m.mu.Unlock()

	t := WentOffline
	if online {
		t = WentOnline
	}
	m.logger.Info().Str("transition", string(t)).Msg("Connectivity changed")

	for _, l := range snapshot {
		m.deliver(l, t)
	}
}

func (m *Monitor) deliver(l listener, t Transition) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error().
				Str("transition", string(t)).
				Interface("panic", rec).
				Msg("Connectivity listener failed")
		}
	}()
	l.fn(t)
}
