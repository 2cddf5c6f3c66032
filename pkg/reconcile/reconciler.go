package reconcile

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell/internal/metrics"
	"github.com/agentstation/inkwell/pkg/clock"
	"github.com/agentstation/inkwell/pkg/connectivity"
	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/drafts"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/events"
	"github.com/agentstation/inkwell/pkg/logging"
)

const (
	opSave    = "save"
	opPublish = "publish"
	opSync    = "sync"
	opDelete  = "delete"
)

// Config configures a Reconciler.
type Config struct {
	Remote       ContentStore         // required
	Drafts       DraftStore           // required
	Connectivity connectivity.Checker // required
	Bus          events.Emitter       // optional
	Clock        clock.Clock
	Logger       *zerolog.Logger
}

// Reconciler commits drafts. Commits are serialized.
type Reconciler struct {
	remote ContentStore
	drafts DraftStore
	conn   connectivity.Checker
	bus    events.Emitter
	clock  clock.Clock
	logger *zerolog.Logger

	commitMu sync.Mutex

	aliasMu sync.RWMutex
	aliases map[string]string // local id -> remote id

	sweeping atomic.Bool

	watchMu  sync.Mutex
	watched  connectivity.Watcher
	watchH   connectivity.Handle
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// New creates a Reconciler.
func New(cfg Config) (*Reconciler, error) {
	switch {
	case cfg.Remote == nil:
		return nil, &errors.ValidationError{Field: "Remote", Message: "content store is required"}
	case cfg.Drafts == nil:
		return nil, &errors.ValidationError{Field: "Drafts", Message: "draft store is required"}
	case cfg.Connectivity == nil:
		return nil, &errors.ValidationError{Field: "Connectivity", Message: "connectivity checker is required"}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		remote:  cfg.Remote,
		drafts:  cfg.Drafts,
		conn:    cfg.Connectivity,
		bus:     cfg.Bus,
		clock:   clock.OrReal(cfg.Clock),
		logger:  logging.Component(cfg.Logger, "reconciler"),
		aliases: make(map[string]string),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Resolve returns the id that id is currently known by. A committed
// local id resolves to its remote id; any other id resolves to itself.
func (r *Reconciler) Resolve(id string) string {
	r.aliasMu.RLock()
	defer r.aliasMu.RUnlock()
	for i := 0; i < 8; i++ {
		next, ok := r.aliases[id]
		if !ok {
			break
		}
		id = next
	}
	return id
}

func (r *Reconciler) alias(localID, remoteID string) {
	r.aliasMu.Lock()
	defer r.aliasMu.Unlock()
	r.aliases[localID] = remoteID
}

// Save commits d when online and stores it locally otherwise. A failed
// commit is reported in the Outcome, not as an error; the error return
// is reserved for failures to persist the draft locally.
func (r *Reconciler) Save(ctx context.Context, d drafts.Draft) (Outcome, error) {
	out, err := r.commit(ctx, d, opSave)
	if err == nil && out.Status != StatusCommitted {
		metrics.DraftWritten(opSave)
	}
	return out, err
}

// Publish commits d as published. Unlike Save, a failed commit is
// returned as a *errors.SyncError; the draft is still kept locally.
func (r *Reconciler) Publish(ctx context.Context, d drafts.Draft) (Outcome, error) {
	d.Fields = d.Fields.Clone()
	if d.Fields == nil {
		d.Fields = content.Fields{}
	}
	d.Fields[content.FieldPublished] = true
	d.Fields[content.FieldStatus] = content.StatusPublished

	out, err := r.commit(ctx, d, opPublish)
	if err != nil {
		return out, err
	}
	switch out.Status {
	case StatusSavedOffline:
		return out, errors.NewSyncError(out.ID, errors.ErrOffline)
	case StatusPending:
		return out, errors.NewSyncError(out.ID, out.Err)
	}
	return out, nil
}

// Delete removes the item from the content service and drops any draft
// for it. Deleting requires connectivity. A local id that was never
// committed only drops the draft.
func (r *Reconciler) Delete(ctx context.Context, id string) error {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	resolved := r.Resolve(id)
	if !content.IsLocalID(resolved) {
		if !r.conn.IsOnline() {
			return errors.NewSyncError(resolved, errors.ErrOffline)
		}
		start := r.clock.Now()
		err := r.remote.Delete(ctx, resolved)
		if err != nil {
			metrics.Commit(opDelete, metrics.ResultError, r.clock.Now().Sub(start))
			r.logger.Warn().Err(err).Str("item_id", resolved).Msg("Delete failed")
			return errors.WrapResource(opDelete, "post", resolved, err)
		}
		metrics.Commit(opDelete, metrics.ResultCommitted, r.clock.Now().Sub(start))
	}

	for _, stale := range uniq(id, resolved) {
		if err := r.drafts.Remove(stale); err != nil {
			return err
		}
	}
	metrics.SetPending(r.drafts.Len())
	r.emit(events.ContentDeleted, content.Change{ID: resolved})
	return nil
}

// commit runs one save attempt for d. Callers must not hold commitMu.
func (r *Reconciler) commit(ctx context.Context, d drafts.Draft, op string) (Outcome, error) {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	if d.SavedAt.IsZero() {
		d.SavedAt = r.clock.Now()
	}
	d.Fields = d.Fields.Clone()

	origID := d.ID
	if origID == "" {
		origID = content.NewLocalID()
	}
	d.ID = r.Resolve(origID)
	logger := r.logger.With().Str("draft_id", d.ID).Str("operation", op).Logger()

	// A draft left under a committed local id moves to the remote id.
	if origID != d.ID {
		if _, ok := r.drafts.Get(origID); ok {
			if err := r.drafts.Rekey(origID, d); err != nil {
				return Outcome{}, err
			}
		}
	}

	if !r.conn.IsOnline() {
		d.OriginIsOffline = true
		if err := r.drafts.Put(d); err != nil {
			return Outcome{}, err
		}
		metrics.Commit(op, metrics.ResultSavedOffline, 0)
		metrics.SetPending(r.drafts.Len())
		logger.Info().Msg("Saved offline, will sync")
		return Outcome{Status: StatusSavedOffline, ID: d.ID}, nil
	}

	before, hadBefore := r.drafts.Get(d.ID)
	start := r.clock.Now()
	item, err := r.send(ctx, d)
	took := r.clock.Now().Sub(start)
	if err == nil && item.ID == "" && content.IsLocalID(d.ID) {
		// Without a remote id the local id would leak past the commit.
		err = errors.NewParseError("json", "create", "created post has no id", nil)
	}

	// The network call may have taken a while; another writer may have
	// saved a newer version of this draft meanwhile. A rewrite of the
	// same content is not a newer version.
	current, hasCurrent := r.drafts.Get(d.ID)
	changed := hasCurrent && (!hadBefore || !sameDraft(before, current)) && !sameContent(current, d)

	if err != nil {
		metrics.Commit(op, metrics.ResultPending, took)
		logger.Warn().Err(err).Bool("transient", errors.IsTransient(err)).Msg("Commit failed, keeping draft")
		if !changed {
			if perr := r.drafts.Put(d); perr != nil {
				return Outcome{}, perr
			}
		}
		metrics.SetPending(r.drafts.Len())
		return Outcome{Status: StatusPending, ID: d.ID, Err: err}, nil
	}

	remoteID := item.ID
	if remoteID == "" {
		remoteID = d.ID
	}
	out := Outcome{Status: StatusCommitted, ID: remoteID, Item: &item}
	if content.IsLocalID(d.ID) {
		out.LocalID = d.ID
		if remoteID != d.ID {
			r.alias(d.ID, remoteID)
		}
	}

	if changed {
		current.ID = remoteID
		if err := r.drafts.Rekey(d.ID, current); err != nil {
			return out, err
		}
		logger.Info().Str("item_id", remoteID).Msg("Committed; newer local edit kept")
	} else if err := r.drafts.Remove(d.ID); err != nil {
		return out, err
	}
	metrics.Commit(op, metrics.ResultCommitted, took)
	metrics.SetPending(r.drafts.Len())

	eventType := events.ContentUpdated
	if out.LocalID != "" {
		eventType = events.ContentCreated
	}
	r.emit(eventType, content.Change{ID: remoteID, LocalID: out.LocalID, Item: &item})
	logger.Info().Str("item_id", remoteID).Msg("Draft committed")
	return out, nil
}

func (r *Reconciler) send(ctx context.Context, d drafts.Draft) (content.Item, error) {
	if content.IsLocalID(d.ID) {
		return r.remote.Create(ctx, d.Fields)
	}
	return r.remote.Update(ctx, d.ID, d.Fields)
}

func (r *Reconciler) emit(t events.EventType, data any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Emit(t, data); err != nil {
		r.logger.Error().Err(err).Str("event_type", string(t)).Msg("Emit failed")
	}
}

// sameDraft compares the persisted form of two drafts.
func sameDraft(a, b drafts.Draft) bool {
	return a.SavedAt.Equal(b.SavedAt) && sameContent(a, b)
}

// sameContent compares id and the canonical JSON of the fields.
func sameContent(a, b drafts.Draft) bool {
	if a.ID != b.ID {
		return false
	}
	aj, err1 := json.Marshal(a.Fields)
	bj, err2 := json.Marshal(b.Fields)
	return err1 == nil && err2 == nil && string(aj) == string(bj)
}

func uniq(ids ...string) []string {
	out := ids[:0:0]
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
