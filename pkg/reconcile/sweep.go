package reconcile

import (
	"context"
	stderrors "errors"

	"github.com/agentstation/inkwell/internal/metrics"
	"github.com/agentstation/inkwell/pkg/connectivity"
	"github.com/agentstation/inkwell/pkg/events"
)

// Sweep tries to commit every stored draft, most recent first.
// Connectivity is re-checked before each commit and the sweep stops when
// it is lost. A content-list-refresh event is emitted when at least one
// draft was committed. Only one sweep runs at a time; a concurrent call
// returns a result with Skipped set.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	if !r.sweeping.CompareAndSwap(false, true) {
		return SweepResult{Skipped: true}, nil
	}
	defer r.sweeping.Store(false)
	metrics.Sweep()

	var result SweepResult
	for _, listed := range r.drafts.List() {
		if ctx.Err() != nil || !r.conn.IsOnline() {
			result.Interrupted = true
			break
		}
		// Re-read: the draft may have been committed or edited since List.
		d, ok := r.drafts.Get(listed.ID)
		if !ok {
			continue
		}
		out, err := r.commit(ctx, d, opSync)
		if err != nil {
			return result, err
		}
		result.Attempted++
		switch out.Status {
		case StatusCommitted:
			result.Committed++
		case StatusSavedOffline:
			// Went offline between the check and the commit.
			result.Interrupted = true
		default:
			result.Pending++
		}
		if result.Interrupted {
			break
		}
	}

	if result.Committed > 0 {
		r.emit(events.ContentListRefresh, result)
	}
	r.logger.Info().
		Int("attempted", result.Attempted).
		Int("committed", result.Committed).
		Int("pending", result.Pending).
		Bool("interrupted", result.Interrupted).
		Msg("Sweep finished")
	return result, nil
}

// WatchConnectivity starts a sweep in the background whenever w reports
// went-online. Calling it again replaces the previous watch.
func (r *Reconciler) WatchConnectivity(w connectivity.Watcher) {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if r.watched != nil {
		r.watched.Remove(r.watchH)
	}
	r.watched = w
	r.watchH = w.OnChange(func(t connectivity.Transition) {
		if t.Online() {
			r.sweepAsync()
		}
	})
}

func (r *Reconciler) sweepAsync() {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if r.ctx.Err() != nil {
		return
	}
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		if _, err := r.Sweep(r.ctx); err != nil && !stderrors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Msg("Reconnect sweep failed")
		}
	}()
}

// Close stops watching connectivity, cancels background sweeps and waits
// for them to return.
func (r *Reconciler) Close() {
	r.watchMu.Lock()
	if r.watched != nil {
		r.watched.Remove(r.watchH)
		r.watched = nil
	}
	r.cancel()
	r.watchMu.Unlock()
	r.inflight.Wait()
}
