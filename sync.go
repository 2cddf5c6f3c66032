package inkwell

import (
	"context"

	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/drafts"
	"github.com/agentstation/inkwell/pkg/logging"
	"github.com/agentstation/inkwell/pkg/reconcile"
)

// Syncer moves content between the draft store and the blog service.
type Syncer interface {
	// Save commits fields under id, or keeps them as a draft when that
	// is not possible. An empty id creates a new post.
	Save(ctx context.Context, id string, fields content.Fields) (reconcile.Outcome, error)

	// Publish is Save with the post marked published. Any result other
	// than a commit is returned as an error.
	Publish(ctx context.Context, id string, fields content.Fields) (reconcile.Outcome, error)

	// Delete removes a post.
	Delete(ctx context.Context, id string) error

	// Sync commits every pending draft it can.
	Sync(ctx context.Context) (reconcile.SweepResult, error)
}

// Save commits fields under id.
func (c *Client) Save(ctx context.Context, id string, fields content.Fields) (reconcile.Outcome, error) {
	d := c.draft(id, fields)
	ctx = c.opContext(ctx, "save", d.ID)
	out, err := c.reconciler.Save(ctx, d)
	logOutcome(ctx, out, err)
	return out, err
}

// Publish commits fields under id as a published post.
func (c *Client) Publish(ctx context.Context, id string, fields content.Fields) (reconcile.Outcome, error) {
	d := c.draft(id, fields)
	ctx = c.opContext(ctx, "publish", d.ID)
	out, err := c.reconciler.Publish(ctx, d)
	logOutcome(ctx, out, err)
	return out, err
}

// Delete removes a post and any draft of it.
func (c *Client) Delete(ctx context.Context, id string) error {
	ctx = c.opContext(ctx, "delete", id)
	if err := c.reconciler.Delete(ctx, id); err != nil {
		return err
	}
	logging.FromContext(ctx).Debug().Msg("Deleted")
	return nil
}

// Sync runs one reconciliation sweep.
func (c *Client) Sync(ctx context.Context) (reconcile.SweepResult, error) {
	ctx = c.opContext(ctx, "sync", "")
	result, err := c.reconciler.Sweep(ctx)
	if err != nil {
		return result, err
	}
	logging.FromContext(ctx).Debug().
		Int("attempted", result.Attempted).
		Int("committed", result.Committed).
		Int("pending", result.Pending).
		Msg("Sync finished")
	return result, nil
}

// draft builds the draft saved for id, minting a local id for new posts.
func (c *Client) draft(id string, fields content.Fields) drafts.Draft {
	if id == "" {
		id = content.NewLocalID()
	}
	return drafts.Draft{
		ID:      id,
		Fields:  fields.Clone(),
		SavedAt: c.clock.Now(),
	}
}

// opContext attaches the client logger and the operation to ctx.
func (c *Client) opContext(ctx context.Context, op, draftID string) context.Context {
	ctx = logging.WithOperation(logging.WithLogger(ctx, c.logger), op)
	if draftID != "" {
		ctx = logging.WithDraft(ctx, draftID)
	}
	return ctx
}

func logOutcome(ctx context.Context, out reconcile.Outcome, err error) {
	event := logging.FromContext(ctx).Debug()
	if err != nil {
		event = logging.FromContext(ctx).Warn().Err(err)
	}
	event.Str("status", out.Status.String()).Str("item_id", out.ID).Msg("Save finished")
}
