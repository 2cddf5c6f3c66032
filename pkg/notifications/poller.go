package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell/internal/metrics"
	"github.com/agentstation/inkwell/pkg/clock"
	"github.com/agentstation/inkwell/pkg/constants"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/logging"
	"github.com/agentstation/inkwell/pkg/schedule"
)

// Config configures a Poller.
type Config struct {
	Store  Store  // required
	UserID string // required
	// Interval between unread-count polls; defaults to 30s.
	Interval time.Duration
	// FullRefresh also reloads the full list on every tick.
	FullRefresh bool
	// Preferences is the initial preference state; zero means defaults.
	Preferences *Preferences
	Reporter    Reporter
	Clock       clock.Clock
	Logger      *zerolog.Logger
}

// localRead tracks a mark-read made on this client.
type localRead struct {
	markedSeq  uint64
	settledSeq uint64 // 0 while the confirmation is in flight
}

// Poller maintains the notification projection. It is safe for
// concurrent use.
type Poller struct {
	store       Store
	userID      string
	fullRefresh bool
	reporter    Reporter
	logger      *zerolog.Logger
	task        *schedule.Task

	mu         sync.Mutex
	items      []Notification
	unread     map[string]struct{}
	localReads map[string]*localRead
	prefs      Preferences
	seq        uint64
	listSeq    uint64 // start seq of the last applied list
	unreadSeq  uint64 // start seq of the last applied unread set

	confirms sync.WaitGroup
}

// NewPoller creates a stopped Poller.
func NewPoller(cfg Config) (*Poller, error) {
	switch {
	case cfg.Store == nil:
		return nil, &errors.ValidationError{Field: "Store", Message: "notification store is required"}
	case cfg.UserID == "":
		return nil, &errors.ValidationError{Field: "UserID", Message: "user id is required"}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultPollInterval
	}
	prefs := DefaultPreferences()
	if cfg.Preferences != nil {
		prefs = *cfg.Preferences
	}

	p := &Poller{
		store:       cfg.Store,
		userID:      cfg.UserID,
		fullRefresh: cfg.FullRefresh,
		reporter:    cfg.Reporter,
		logger:      logging.Component(cfg.Logger, "notifications"),
		unread:      make(map[string]struct{}),
		localReads:  make(map[string]*localRead),
		prefs:       prefs,
	}
	p.task = schedule.New("notifications", cfg.Interval, p.tick, cfg.Clock, cfg.Logger)
	return p, nil
}

func (p *Poller) tick(ctx context.Context) error {
	if p.fullRefresh {
		if err := p.Refresh(ctx); err != nil {
			return err
		}
	}
	return p.RefreshUnreadCount(ctx)
}

// begin starts a poll and returns its sequence number.
func (p *Poller) begin() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	return p.seq
}

// Refresh replaces the projection with the service's full list.
func (p *Poller) Refresh(ctx context.Context) error {
	start := p.begin()
	list, err := p.store.List(ctx, p.userID)
	metrics.Poll("list", err)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Notification refresh failed")
		return errors.WrapResource("list", "notifications", p.userID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if start < p.listSeq {
		return nil
	}
	p.listSeq = start

	items := make([]Notification, len(list))
	copy(items, list)
	if start < p.unreadSeq {
		// A newer unread set is already applied; its notifications stay
		// in the projection even when this older list predates them.
		items = p.keepUnreadLocked(items)
	}
	p.items = items
	if start > p.unreadSeq {
		p.unreadSeq = start
		unread := make(map[string]struct{})
		for _, n := range items {
			if !n.IsRead {
				unread[n.ID] = struct{}{}
			}
		}
		p.applyUnreadLocked(unread, start)
	}
	p.syncFlagsLocked()
	return nil
}

// RefreshUnreadCount replaces the unread set with the service's unread
// list.
func (p *Poller) RefreshUnreadCount(ctx context.Context) error {
	start := p.begin()
	list, err := p.store.ListUnread(ctx, p.userID)
	metrics.Poll("unread", err)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Unread count refresh failed")
		return errors.WrapResource("list unread", "notifications", p.userID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if start < p.unreadSeq {
		return nil
	}
	p.unreadSeq = start

	unread := make(map[string]struct{}, len(list))
	known := make(map[string]bool, len(p.items))
	for _, n := range p.items {
		known[n.ID] = true
	}
	var fresh []Notification
	for _, n := range list {
		unread[n.ID] = struct{}{}
		if !known[n.ID] {
			known[n.ID] = true
			fresh = append(fresh, n)
		}
	}
	if len(fresh) > 0 {
		p.items = append(fresh, p.items...)
	}
	p.applyUnreadLocked(unread, start)
	p.syncFlagsLocked()
	return nil
}

// applyUnreadLocked installs unread as the unread set for a poll that
// started at seq start. Local reads the poll cannot have seen stay read.
func (p *Poller) applyUnreadLocked(unread map[string]struct{}, start uint64) {
	for id, lr := range p.localReads {
		if lr.settledSeq != 0 && lr.settledSeq < start {
			// The poll started after the mark settled: the service is
			// authoritative from here on.
			delete(p.localReads, id)
			continue
		}
		delete(unread, id)
	}
	p.unread = unread
	metrics.SetUnread(len(p.unread))
}

// keepUnreadLocked prepends the current items that are in the unread
// set but missing from items.
func (p *Poller) keepUnreadLocked(items []Notification) []Notification {
	listed := make(map[string]bool, len(items))
	for _, n := range items {
		listed[n.ID] = true
	}
	var carried []Notification
	for _, n := range p.items {
		if _, unread := p.unread[n.ID]; unread && !listed[n.ID] {
			listed[n.ID] = true
			carried = append(carried, n)
		}
	}
	if len(carried) == 0 {
		return items
	}
	return append(carried, items...)
}

// syncFlagsLocked derives IsRead on every item from the unread set.
func (p *Poller) syncFlagsLocked() {
	for i := range p.items {
		_, isUnread := p.unread[p.items[i].ID]
		p.items[i].IsRead = !isUnread
	}
}

// MarkReadLocal marks id read in the projection. It reports whether id
// was unread; marking a read or unknown notification changes nothing.
func (p *Poller) MarkReadLocal(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.unread[id]; !ok {
		return false
	}
	delete(p.unread, id)
	for i := range p.items {
		if p.items[i].ID == id {
			p.items[i].IsRead = true
		}
	}
	p.seq++
	p.localReads[id] = &localRead{markedSeq: p.seq}
	metrics.SetUnread(len(p.unread))
	return true
}

// ConfirmRead tells the service that id was read. A failure is passed
// to the reporter and logged as well as returned.
func (p *Poller) ConfirmRead(ctx context.Context, id string) error {
	err := p.store.MarkRead(ctx, id)

	p.mu.Lock()
	if lr, ok := p.localReads[id]; ok && lr.settledSeq == 0 {
		p.seq++
		lr.settledSeq = p.seq
	}
	p.mu.Unlock()

	if err != nil {
		err = errors.WrapResource("mark read", "notification", id, err)
		p.logger.Error().Err(err).Str("notification_id", id).Msg("Mark as read was not confirmed")
		if p.reporter != nil {
			p.reporter("mark read", err)
		}
		return err
	}
	return nil
}

// MarkRead marks id read locally and confirms it in the background.
// Stop waits for outstanding confirmations. It reports whether id was
// unread.
func (p *Poller) MarkRead(ctx context.Context, id string) bool {
	if !p.MarkReadLocal(id) {
		return false
	}
	p.confirms.Add(1)
	go func() {
		defer p.confirms.Done()
		_ = p.ConfirmRead(context.WithoutCancel(ctx), id)
	}()
	return true
}

// UpdatePreferences sends prefs to the service and adopts them only once
// the service accepts.
func (p *Poller) UpdatePreferences(ctx context.Context, prefs Preferences) error {
	if err := p.store.SetPreferences(ctx, p.userID, prefs); err != nil {
		p.logger.Warn().Err(err).Msg("Preference update rejected")
		return errors.WrapResource("update", "preferences", p.userID, err)
	}
	p.mu.Lock()
	p.prefs = prefs
	p.mu.Unlock()
	return nil
}

// Notifications returns a copy of the projection.
func (p *Poller) Notifications() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notification, len(p.items))
	copy(out, p.items)
	return out
}

// UnreadCount returns the number of notifications known to be unread.
func (p *Poller) UnreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.unread)
}

// Preferences returns the preferences last accepted by the service.
func (p *Poller) Preferences() Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prefs
}

// Start loads the full list and the unread set, then polls the unread
// set every interval. Initial load failures are logged; polling starts
// regardless.
func (p *Poller) Start(ctx context.Context) error {
	if err := p.Refresh(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("Initial notification load failed")
	}
	if err := p.RefreshUnreadCount(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("Initial unread count failed")
	}
	return p.task.Start()
}

// Stop ends polling and waits for in-flight polls and confirmations.
func (p *Poller) Stop() {
	p.task.Stop()
	p.confirms.Wait()
}
