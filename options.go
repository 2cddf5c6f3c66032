package inkwell

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell/pkg/clock"
	"github.com/agentstation/inkwell/pkg/constants"
	"github.com/agentstation/inkwell/pkg/kv"
	"github.com/agentstation/inkwell/pkg/notifications"
	"github.com/agentstation/inkwell/pkg/reconcile"
	"github.com/agentstation/inkwell/pkg/remote"
)

// Option configures a Client.
type Option func(*options)

// options holds the Client configuration.
type options struct {
	// remote collaborators
	content       reconcile.ContentStore
	notifications notifications.Store
	userID        string

	// local persistence
	store     kv.Store
	draftsKey string

	// timers
	autosaveInterval time.Duration
	pollInterval     time.Duration
	probeInterval    time.Duration
	fullRefresh      bool

	// connectivity
	online          bool
	probeURL        string
	syncOnReconnect bool

	preferences *notifications.Preferences
	reporter    notifications.Reporter

	clock  clock.Clock
	logger *zerolog.Logger
}

// defaults returns the default options.
func defaults() *options {
	return &options{
		draftsKey:        constants.DraftsKey,
		autosaveInterval: constants.DefaultAutosaveInterval,
		pollInterval:     constants.DefaultPollInterval,
		probeInterval:    constants.DefaultProbeInterval,
		online:           true,
		syncOnReconnect:  true,
	}
}

// apply applies the given options.
func (o *options) apply(opts ...Option) *options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithRemote uses one REST client for content and notifications and
// probes its base URL for connectivity.
func WithRemote(c *remote.Client) Option {
	return func(o *options) {
		o.content = c
		o.notifications = c
		if o.probeURL == "" {
			o.probeURL = c.BaseURL()
		}
	}
}

// WithContentStore sets the remote content store.
func WithContentStore(s reconcile.ContentStore) Option {
	return func(o *options) { o.content = s }
}

// WithNotificationStore sets the remote notification store.
func WithNotificationStore(s notifications.Store) Option {
	return func(o *options) { o.notifications = s }
}

// WithUserID sets the user whose notifications are polled. Without it
// notifications are disabled.
func WithUserID(id string) Option {
	return func(o *options) { o.userID = id }
}

// WithStore sets the durable store drafts are kept in. The default is
// in memory.
func WithStore(s kv.Store) Option {
	return func(o *options) { o.store = s }
}

// WithDraftsKey overrides the key the draft collection is stored under.
func WithDraftsKey(key string) Option {
	return func(o *options) { o.draftsKey = key }
}

// WithAutosaveInterval sets the autosave period of edit sessions.
func WithAutosaveInterval(d time.Duration) Option {
	return func(o *options) { o.autosaveInterval = d }
}

// WithPollInterval sets how often the unread count is polled.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithFullRefresh reloads the full notification list on every poll.
func WithFullRefresh(enabled bool) Option {
	return func(o *options) { o.fullRefresh = enabled }
}

// WithProbe enables connectivity probing of url every interval. An
// empty url disables probing.
func WithProbe(url string, interval time.Duration) Option {
	return func(o *options) {
		o.probeURL = url
		if interval > 0 {
			o.probeInterval = interval
		}
	}
}

// WithInitialOnline sets the connectivity state assumed at start.
func WithInitialOnline(online bool) Option {
	return func(o *options) { o.online = online }
}

// WithSyncOnReconnect controls whether pending drafts are swept when
// connectivity comes back. Enabled by default.
func WithSyncOnReconnect(enabled bool) Option {
	return func(o *options) { o.syncOnReconnect = enabled }
}

// WithPreferences sets the initial notification preferences.
func WithPreferences(p notifications.Preferences) Option {
	return func(o *options) { o.preferences = &p }
}

// WithErrorReporter receives notification failures that happen in the
// background.
func WithErrorReporter(r notifications.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithClock sets the clock driving every timer.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}
