// Package autosave periodically persists the active edit buffer into
// the draft store.
//
// A tick writes only when the buffer has a title or content and differs
// from what the last successful tick wrote, so repeated ticks over an
// unchanged buffer converge on one stored draft. Autosave never emits
// bus events.
package autosave

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/agentstation/inkwell/internal/metrics"
	"github.com/agentstation/inkwell/pkg/clock"
	"github.com/agentstation/inkwell/pkg/connectivity"
	"github.com/agentstation/inkwell/pkg/constants"
	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/drafts"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/logging"
	"github.com/agentstation/inkwell/pkg/schedule"
)

// Putter is the part of the draft store autosave writes to.
type Putter interface {
	Put(d drafts.Draft) error
}

// IDResolver maps an id to the id it is currently known by. A local id
// that has been committed resolves to the remote id.
type IDResolver interface {
	Resolve(id string) string
}

// Config configures a Scheduler.
type Config struct {
	// Store receives the drafts. Required.
	Store Putter
	// Connectivity is consulted for OriginIsOffline. Nil means online.
	Connectivity connectivity.Checker
	// Resolver rewrites the session id before each write. Optional.
	Resolver IDResolver
	// ItemID is the id of the item being edited. Empty mints a local id.
	ItemID string
	// Initial is the starting buffer.
	Initial content.Fields
	// Interval between ticks; defaults to 30s.
	Interval time.Duration
	Clock    clock.Clock
	Logger   *zerolog.Logger
}

// Scheduler owns the edit buffer of one session.
type Scheduler struct {
	store    Putter
	conn     connectivity.Checker
	resolver IDResolver
	clock    clock.Clock
	logger   *zerolog.Logger
	task     *schedule.Task

	mu     sync.Mutex // guards id, buffer, lastFP, closed
	id     string
	buffer content.Fields
	lastFP [32]byte
	wrote  bool
	closed bool

	tickMu sync.Mutex // serializes ticks
}

// NewScheduler creates a stopped Scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Store == nil {
		return nil, &errors.ValidationError{Field: "Store", Message: "draft store is required"}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultAutosaveInterval
	}
	id := cfg.ItemID
	if id == "" {
		id = content.NewLocalID()
	}
	buffer := cfg.Initial.Clone()
	if buffer == nil {
		buffer = content.Fields{}
	}

	s := &Scheduler{
		store:    cfg.Store,
		conn:     cfg.Connectivity,
		resolver: cfg.Resolver,
		clock:    clock.OrReal(cfg.Clock),
		logger:   logging.Component(cfg.Logger, "autosave"),
		id:       id,
		buffer:   buffer,
	}
	s.task = schedule.New("autosave", cfg.Interval, func(context.Context) error {
		_, err := s.Tick()
		return err
	}, s.clock, cfg.Logger)
	return s, nil
}

// ID returns the id drafts are written under, after resolution.
func (s *Scheduler) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked()
}

func (s *Scheduler) resolveLocked() string {
	if s.resolver != nil {
		if id := s.resolver.Resolve(s.id); id != "" {
			s.id = id
		}
	}
	return s.id
}

// Update replaces the whole buffer.
func (s *Scheduler) Update(fields content.Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = fields.Clone()
	if s.buffer == nil {
		s.buffer = content.Fields{}
	}
}

// Set changes one field of the buffer.
func (s *Scheduler) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer[name] = value
}

// Fields returns a copy of the buffer.
func (s *Scheduler) Fields() content.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Clone()
}

// fingerprint hashes the canonical JSON of fields. encoding/json sorts
// map keys, so equal buffers hash equally.
func fingerprint(fields content.Fields) ([32]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(data), nil
}

// Tick runs one autosave step and reports whether it wrote a draft.
func (s *Scheduler) Tick() (bool, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, nil
	}
	fields := s.buffer.Clone()
	if !fields.HasText() {
		s.mu.Unlock()
		return false, nil
	}
	fp, err := fingerprint(fields)
	if err != nil {
		s.mu.Unlock()
		return false, errors.WrapParse("json", "edit buffer", err)
	}
	if s.wrote && fp == s.lastFP {
		s.mu.Unlock()
		return false, nil
	}
	id := s.resolveLocked()
	s.mu.Unlock()

	d := drafts.Draft{
		ID:              id,
		Fields:          fields,
		SavedAt:         s.clock.Now(),
		OriginIsOffline: s.conn != nil && !s.conn.IsOnline(),
	}
	if err := s.store.Put(d); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.lastFP = fp
	s.wrote = true
	s.mu.Unlock()

	metrics.DraftWritten("autosave")
	s.logger.Debug().Str("draft_id", id).Bool("offline", d.OriginIsOffline).Msg("Draft autosaved")
	return true, nil
}

// MarkSaved records fields as persisted by another path, such as an
// explicit save, so the next tick skips them while the buffer is
// unchanged.
func (s *Scheduler) MarkSaved(fields content.Fields) error {
	fp, err := fingerprint(fields)
	if err != nil {
		return errors.WrapParse("json", "edit buffer", err)
	}
	s.mu.Lock()
	s.lastFP = fp
	s.wrote = true
	s.mu.Unlock()
	return nil
}

// Start begins ticking every interval.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.ErrClosed
	}
	return s.task.Start()
}

// Stop ends the session. No tick runs after Stop returns and the
// scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.task.Stop()
}
