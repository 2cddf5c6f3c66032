package inkwell

import (
	"github.com/agentstation/inkwell/internal/metrics"
	"github.com/agentstation/inkwell/pkg/drafts"
)

// Drafts gives read access to the durable draft store.
type Drafts interface {
	// Drafts lists stored drafts, most recently saved first.
	Drafts() []drafts.Draft

	// Draft returns the draft stored under id, following committed
	// local ids to their remote id.
	Draft(id string) (drafts.Draft, bool)

	// DiscardDraft drops a draft without syncing it.
	DiscardDraft(id string) error

	// PendingCount is the number of drafts not yet committed.
	PendingCount() int
}

// Drafts lists stored drafts, most recently saved first.
func (c *Client) Drafts() []drafts.Draft {
	return c.drafts.List()
}

// Draft returns the draft stored under id.
func (c *Client) Draft(id string) (drafts.Draft, bool) {
	if d, ok := c.drafts.Get(id); ok {
		return d, true
	}
	return c.drafts.Get(c.reconciler.Resolve(id))
}

// DiscardDraft drops a draft without syncing it.
func (c *Client) DiscardDraft(id string) error {
	if _, ok := c.drafts.Get(id); !ok {
		id = c.reconciler.Resolve(id)
	}
	if err := c.drafts.Remove(id); err != nil {
		return err
	}
	metrics.SetPending(c.drafts.Len())
	return nil
}

// PendingCount is the number of drafts not yet committed.
func (c *Client) PendingCount() int {
	return c.drafts.Len()
}
