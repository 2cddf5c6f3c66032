package inkwell

import (
	"context"
	"sync"

	"github.com/agentstation/inkwell/pkg/autosave"
	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/drafts"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/events"
	"github.com/agentstation/inkwell/pkg/reconcile"
)

// Session is one open editor: an autosaved edit buffer plus the bus
// subscriptions of the view showing it. Close releases both.
type Session struct {
	client *Client
	auto   *autosave.Scheduler
	views  *events.Group
	once   sync.Once
}

// Edit opens an editing session for the post id, or for a new post when
// id is empty. With nil initial fields an existing draft of the post is
// resumed.
func (c *Client) Edit(id string, initial content.Fields) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.ErrClosed
	}

	if initial == nil && id != "" {
		if d, ok := c.Draft(id); ok {
			initial = d.Fields
		}
	}

	auto, err := autosave.NewScheduler(autosave.Config{
		Store:        c.drafts,
		Connectivity: c.monitor,
		Resolver:     c.reconciler,
		ItemID:       id,
		Initial:      initial,
		Interval:     c.options.autosaveInterval,
		Clock:        c.clock,
		Logger:       c.options.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := auto.Start(); err != nil {
		return nil, errors.WrapResource("start", "autosave", id, err)
	}

	s := &Session{
		client: c,
		auto:   auto,
		views:  events.NewGroup(c.bus),
	}
	c.sessions[s] = struct{}{}
	c.logger.Debug().Str("draft_id", auto.ID()).Msg("Edit session opened")
	return s, nil
}

// ID is the id the session saves under; a committed new post reports
// its remote id.
func (s *Session) ID() string { return s.auto.ID() }

// Fields returns a copy of the edit buffer.
func (s *Session) Fields() content.Fields { return s.auto.Fields() }

// Update replaces the edit buffer.
func (s *Session) Update(fields content.Fields) { s.auto.Update(fields) }

// Set changes one field of the edit buffer.
func (s *Session) Set(name string, value any) { s.auto.Set(name, value) }

// Flush autosaves now instead of waiting for the next tick.
func (s *Session) Flush() (bool, error) { return s.auto.Tick() }

// Save commits the edit buffer through the reconciler.
func (s *Session) Save(ctx context.Context) (reconcile.Outcome, error) {
	fields := s.auto.Fields()
	out, err := s.client.Save(ctx, s.auto.ID(), fields)
	s.saved(out, err, fields)
	return out, err
}

// Publish commits the edit buffer as a published post.
func (s *Session) Publish(ctx context.Context) (reconcile.Outcome, error) {
	fields := s.auto.Fields()
	out, err := s.client.Publish(ctx, s.auto.ID(), fields)
	s.saved(out, err, fields)
	return out, err
}

// saved keeps autosave from re-writing a buffer the reconciler already
// committed or stored.
func (s *Session) saved(out reconcile.Outcome, err error, fields content.Fields) {
	if out.Status == 0 {
		return
	}
	if err != nil && out.Status == reconcile.StatusCommitted {
		return
	}
	if merr := s.auto.MarkSaved(fields); merr != nil {
		s.client.logger.Warn().Err(merr).Str("draft_id", out.ID).Msg("Autosave state not updated")
	}
}

// Subscribe registers h for t until the session is closed.
func (s *Session) Subscribe(t events.EventType, h events.Handler) (events.Handle, error) {
	return s.views.Subscribe(t, h)
}

// Draft returns the stored draft for this session, if any.
func (s *Session) Draft() (drafts.Draft, bool) {
	return s.client.Draft(s.auto.ID())
}

// Close stops autosave and removes the session's subscriptions. The
// buffer is not flushed. Close is idempotent.
func (s *Session) Close() {
	s.once.Do(func() {
		s.auto.Stop()
		s.views.Close()

		s.client.mu.Lock()
		delete(s.client.sessions, s)
		s.client.mu.Unlock()
	})
}
