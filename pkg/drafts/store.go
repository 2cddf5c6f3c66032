// Package drafts is the durable store of edits that have not reached
// the content service.
//
// The whole collection is serialized as one JSON array under a single
// key of a kv.Store, oldest insertion first. At most one draft exists
// per id: Put replaces any earlier draft with the same id and moves it
// to the end of the insertion order.
package drafts

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell/pkg/constants"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/kv"
	"github.com/agentstation/inkwell/pkg/logging"
)

// Store is the draft collection. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	kv     kv.Store
	key    string
	drafts []Draft // insertion order
	logger *zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithLogger sets the store's logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Store) { s.logger = logging.Component(logger, "drafts") }
}

// Open loads the draft collection from backend.
func Open(backend kv.Store, opts ...Option) (*Store, error) {
	s := &Store{
		kv:     backend,
		key:    constants.DraftsKey,
		logger: logging.Component(nil, "drafts"),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, ok, err := backend.Load(s.key)
	if err != nil {
		return nil, errors.WrapResource("load", "drafts", s.key, err)
	}
	if ok && len(data) > 0 {
		var loaded []Draft
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, errors.WrapParse("json", s.key, err)
		}
		s.drafts = dedupe(loaded)
	}
	s.logger.Debug().Int("drafts", len(s.drafts)).Msg("Draft store opened")
	return s, nil
}

// dedupe keeps the last occurrence of every id, preserving order.
func dedupe(in []Draft) []Draft {
	last := make(map[string]int, len(in))
	for i, d := range in {
		last[d.ID] = i
	}
	out := make([]Draft, 0, len(last))
	for i, d := range in {
		if d.ID != "" && last[d.ID] == i {
			out = append(out, d)
		}
	}
	return out
}

// Put upserts d by id. The previous draft for the id, if any, is
// replaced without merging fields.
func (s *Store) Put(d Draft) error {
	if err := validate(d); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := without(s.drafts, d.ID)
	next = append(next, d.clone())
	return s.commitLocked(next, "put", d.ID)
}

// Rekey replaces the draft stored under oldID with d in one write.
func (s *Store) Rekey(oldID string, d Draft) error {
	if err := validate(d); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := without(without(s.drafts, oldID), d.ID)
	next = append(next, d.clone())
	return s.commitLocked(next, "rekey", oldID)
}

// Remove deletes the draft for id. Removing an absent id is a no-op.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOf(s.drafts, id) < 0 {
		return nil
	}
	return s.commitLocked(without(s.drafts, id), "remove", id)
}

// validate rejects drafts without an id and edit fields that would be
// overwritten by the stored draft's own keys.
func validate(d Draft) error {
	if d.ID == "" {
		return &errors.ValidationError{Field: "id", Value: d.ID, Message: "draft id is required"}
	}
	for _, key := range reservedKeys {
		if _, ok := d.Fields[key]; ok {
			return &errors.ValidationError{Field: key, Message: "field name is reserved for draft metadata"}
		}
	}
	return nil
}

// commitLocked persists next and, only on success, makes it current.
func (s *Store) commitLocked(next []Draft, op, id string) error {
	data, err := json.Marshal(next)
	if err != nil {
		return errors.WrapResource(op, "draft", id, err)
	}
	if err := s.kv.Save(s.key, data); err != nil {
		s.logger.Error().Err(err).Str("operation", op).Str("draft_id", id).Msg("Draft write failed")
		return errors.WrapIO("write", s.key, err)
	}
	s.drafts = next
	return nil
}

// Get returns the draft for id.
func (s *Store) Get(id string) (Draft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.drafts, id); i >= 0 {
		return s.drafts[i].clone(), true
	}
	return Draft{}, false
}

// List returns all drafts, most recently saved first. Drafts saved at
// the same instant keep their insertion order.
func (s *Store) List() []Draft {
	s.mu.RLock()
	out := make([]Draft, len(s.drafts))
	for i, d := range s.drafts {
		out[i] = d.clone()
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SavedAt.After(out[j].SavedAt)
	})
	return out
}

// Len returns the number of drafts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drafts)
}

func indexOf(ds []Draft, id string) int {
	for i, d := range ds {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// without returns a new slice holding ds minus the draft for id.
func without(ds []Draft, id string) []Draft {
	out := make([]Draft, 0, len(ds))
	for _, d := range ds {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return out
}
