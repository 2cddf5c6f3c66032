// Package inkwell is the offline-first synchronization core of a blog
// client. It keeps locally edited posts durable, commits them to the
// blog service when connectivity allows, notifies interested views
// through an event bus and keeps a user's notifications in step with
// the service.
//
// Example usage:
//
//	rc := remote.New("https://blog.example.com")
//	c, err := inkwell.New(
//	    inkwell.WithRemote(rc),
//	    inkwell.WithUserID("42"),
//	    inkwell.WithStore(store),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	c.OnCreated(func(ch content.Change) {
//	    log.Printf("created %s", ch.ID)
//	})
//
//	s, _ := c.Edit("", content.Fields{"title": "Hello"})
//	defer s.Close()
//	out, err := s.Save(ctx)
package inkwell

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell/internal/metrics"
	"github.com/agentstation/inkwell/pkg/clock"
	"github.com/agentstation/inkwell/pkg/connectivity"
	"github.com/agentstation/inkwell/pkg/drafts"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/events"
	"github.com/agentstation/inkwell/pkg/kv"
	"github.com/agentstation/inkwell/pkg/logging"
	"github.com/agentstation/inkwell/pkg/notifications"
	"github.com/agentstation/inkwell/pkg/reconcile"
)

// Client wires the event bus, connectivity monitor, draft store, sync
// reconciler and notification poller together. It is safe for
// concurrent use.
type Client struct {
	options *options
	clock   clock.Clock
	logger  *zerolog.Logger

	bus        *events.Bus
	monitor    *connectivity.Monitor
	drafts     *drafts.Store
	reconciler *reconcile.Reconciler
	poller     *notifications.Poller // nil without a notification store and user
	prober     *connectivity.Prober  // nil without a probe url

	hooks *events.Group

	mu        sync.Mutex
	connHooks []connectivity.Handle
	sessions  map[*Session]struct{}
	started   bool
	closed    bool
}

// Compile-time interface checks.
var (
	_ Drafts    = (*Client)(nil)
	_ Syncer    = (*Client)(nil)
	_ Hooks     = (*Client)(nil)
	_ Lifecycle = (*Client)(nil)
)

// New creates a Client. A content store is required; everything else
// has a default.
func New(opts ...Option) (*Client, error) {
	o := defaults().apply(opts...)
	if o.content == nil {
		return nil, &errors.ValidationError{Field: "content", Message: "a content store is required (WithRemote or WithContentStore)"}
	}
	if o.store == nil {
		o.store = kv.NewMemory()
	}

	c := &Client{
		options:  o,
		clock:    clock.OrReal(o.clock),
		logger:   logging.Component(o.logger, "client"),
		sessions: make(map[*Session]struct{}),
	}

	c.bus = events.NewBus(events.WithClock(c.clock), events.WithLogger(o.logger))
	c.hooks = events.NewGroup(c.bus)
	c.monitor = connectivity.NewMonitor(o.online, o.logger)
	metrics.SetOnline(o.online)
	c.OnConnectivity(func(t connectivity.Transition) {
		metrics.SetOnline(t.Online())
	})

	var err error
	if c.drafts, err = drafts.Open(o.store, drafts.WithKey(o.draftsKey), drafts.WithLogger(o.logger)); err != nil {
		return nil, errors.WrapResource("open", "draft store", o.draftsKey, err)
	}
	metrics.SetPending(c.drafts.Len())

	if c.reconciler, err = reconcile.New(reconcile.Config{
		Remote:       o.content,
		Drafts:       c.drafts,
		Connectivity: c.monitor,
		Bus:          c.bus,
		Clock:        c.clock,
		Logger:       o.logger,
	}); err != nil {
		return nil, errors.WrapResource("create", "reconciler", "", err)
	}
	if o.syncOnReconnect {
		c.reconciler.WatchConnectivity(c.monitor)
	}

	if o.notifications != nil && o.userID != "" {
		if c.poller, err = notifications.NewPoller(notifications.Config{
			Store:       o.notifications,
			UserID:      o.userID,
			Interval:    o.pollInterval,
			FullRefresh: o.fullRefresh,
			Preferences: o.preferences,
			Reporter:    o.reporter,
			Clock:       c.clock,
			Logger:      o.logger,
		}); err != nil {
			return nil, errors.WrapResource("create", "notification poller", o.userID, err)
		}
	}

	if o.probeURL != "" {
		c.prober = connectivity.NewProber(c.monitor, connectivity.ProberConfig{
			URL:      o.probeURL,
			Interval: o.probeInterval,
			Clock:    c.clock,
			Logger:   o.logger,
		})
	}

	c.logger.Debug().
		Int("drafts", c.drafts.Len()).
		Bool("online", o.online).
		Bool("notifications", c.poller != nil).
		Bool("probe", c.prober != nil).
		Msg("Client created")
	return c, nil
}

// Bus returns the event bus views subscribe to.
func (c *Client) Bus() *events.Bus { return c.bus }

// Connectivity returns the connectivity monitor. Platform code reports
// observations through its Set method.
func (c *Client) Connectivity() *connectivity.Monitor { return c.monitor }

// Reconciler returns the sync reconciler.
func (c *Client) Reconciler() *reconcile.Reconciler { return c.reconciler }

// Notifications returns the notification poller, or a validation error
// when no notification store or user id was configured.
func (c *Client) Notifications() (*notifications.Poller, error) {
	if c.poller == nil {
		return nil, &errors.ValidationError{Field: "userID", Message: "notifications need a notification store and a user id"}
	}
	return c.poller, nil
}
