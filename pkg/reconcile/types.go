// Package reconcile moves drafts from the local draft store to the
// content service.
//
// A save while offline only writes the draft. A save while online
// commits it; success removes the draft and emits a bus event, failure
// keeps the draft for a later attempt. A draft is in the store if and
// only if its last commit attempt has not succeeded.
package reconcile

import (
	"context"
	"fmt"

	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/drafts"
)

// ContentStore is the remote content service.
type ContentStore interface {
	Create(ctx context.Context, fields content.Fields) (content.Item, error)
	Update(ctx context.Context, id string, fields content.Fields) (content.Item, error)
	Delete(ctx context.Context, id string) error
}

// DraftStore is the local draft collection.
type DraftStore interface {
	Put(d drafts.Draft) error
	Rekey(oldID string, d drafts.Draft) error
	Get(id string) (drafts.Draft, bool)
	Remove(id string) error
	List() []drafts.Draft
	Len() int
}

// Status is the result of a save or publish.
type Status int

// Statuses.
const (
	// StatusCommitted means the content service accepted the draft.
	StatusCommitted Status = iota + 1
	// StatusSavedOffline means the draft was stored without a network
	// attempt and will sync later.
	StatusSavedOffline
	// StatusPending means a commit was attempted and failed; the draft is
	// kept and will sync later.
	StatusPending
)

// String returns a human readable status.
func (s Status) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusSavedOffline:
		return "saved offline, will sync"
	case StatusPending:
		return "kept locally, will retry"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Outcome describes what happened to one draft.
type Outcome struct {
	Status Status
	// ID is the id the item is known by after the operation.
	ID string
	// LocalID is the local id the draft had before its first commit.
	LocalID string
	// Item is the committed item for StatusCommitted.
	Item *content.Item
	// Err is the commit failure for StatusPending.
	Err error
}

// Committed reports whether the content service accepted the draft.
func (o Outcome) Committed() bool { return o.Status == StatusCommitted }

// SweepResult summarizes one pass over the draft store.
type SweepResult struct {
	Attempted int
	Committed int
	Pending   int
	// Skipped is set when another sweep was already running.
	Skipped bool
	// Interrupted is set when connectivity was lost or the context ended
	// before every draft was tried.
	Interrupted bool
}
