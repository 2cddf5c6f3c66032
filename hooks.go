package inkwell

import (
	"github.com/agentstation/inkwell/pkg/connectivity"
	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/events"
	"github.com/agentstation/inkwell/pkg/reconcile"
)

// Hook function types for content events.
type (
	// ChangeHook is called with the committed change of a post.
	ChangeHook func(change content.Change)

	// RefreshHook is called after a sweep committed at least one draft.
	RefreshHook func(result reconcile.SweepResult)

	// ConnectivityHook is called on every connectivity transition.
	ConnectivityHook func(t connectivity.Transition)
)

// Hooks registers typed callbacks. Hooks live until the Client is
// closed; views that come and go should subscribe through a Session or
// an events.Group instead.
type Hooks interface {
	// OnCreated registers a callback for newly created posts.
	OnCreated(ChangeHook)

	// OnUpdated registers a callback for updated posts.
	OnUpdated(ChangeHook)

	// OnDeleted registers a callback for deleted posts.
	OnDeleted(ChangeHook)

	// OnListRefresh registers a callback for bulk changes.
	OnListRefresh(RefreshHook)

	// OnConnectivity registers a callback for connectivity transitions.
	OnConnectivity(ConnectivityHook)
}

// OnCreated registers a callback for newly created posts.
func (c *Client) OnCreated(fn ChangeHook) { c.onChange(events.ContentCreated, fn) }

// OnUpdated registers a callback for updated posts.
func (c *Client) OnUpdated(fn ChangeHook) { c.onChange(events.ContentUpdated, fn) }

// OnDeleted registers a callback for deleted posts.
func (c *Client) OnDeleted(fn ChangeHook) { c.onChange(events.ContentDeleted, fn) }

// OnListRefresh registers a callback for bulk changes.
func (c *Client) OnListRefresh(fn RefreshHook) {
	c.subscribe(events.ContentListRefresh, func(e events.Event) {
		if r, ok := e.Data.(reconcile.SweepResult); ok {
			fn(r)
		}
	})
}

// OnConnectivity registers a callback for connectivity transitions.
func (c *Client) OnConnectivity(fn ConnectivityHook) {
	h := c.monitor.OnChange(connectivity.Listener(fn))
	c.mu.Lock()
	c.connHooks = append(c.connHooks, h)
	c.mu.Unlock()
}

func (c *Client) onChange(t events.EventType, fn ChangeHook) {
	c.subscribe(t, func(e events.Event) {
		switch ch := e.Data.(type) {
		case content.Change:
			fn(ch)
		case *content.Change:
			if ch != nil {
				fn(*ch)
			}
		}
	})
}

func (c *Client) subscribe(t events.EventType, h events.Handler) {
	if _, err := c.hooks.Subscribe(t, h); err != nil {
		c.logger.Warn().Err(err).Str("event", string(t)).Msg("Hook not registered")
	}
}
