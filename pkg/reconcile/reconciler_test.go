package reconcile_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/inkwell/pkg/clock"
	"github.com/agentstation/inkwell/pkg/connectivity"
	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/drafts"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/events"
	"github.com/agentstation/inkwell/pkg/kv"
	"github.com/agentstation/inkwell/pkg/logging"
	"github.com/agentstation/inkwell/pkg/reconcile"
)

var epoch = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	remote  *fakeRemote
	backend *kv.Memory
	drafts  *drafts.Store
	monitor *connectivity.Monitor
	bus     *events.Bus
	clock   *clock.FakeClock
	rec     *reconcile.Reconciler
	events  []events.Event
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()
	h := &harness{
		remote:  newFakeRemote(),
		backend: kv.NewMemory(),
		monitor: connectivity.NewMonitor(online, logging.NewNopLogger()),
		clock:   clock.Fake(epoch),
	}
	var err error
	h.drafts, err = drafts.Open(h.backend, drafts.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	h.bus = events.NewBus(events.WithClock(h.clock), events.WithLogger(logging.NewNopLogger()))
	for _, typ := range events.Types() {
		_, err := h.bus.Subscribe(typ, func(e events.Event) { h.events = append(h.events, e) })
		require.NoError(t, err)
	}
	h.rec, err = reconcile.New(reconcile.Config{
		Remote:       h.remote,
		Drafts:       h.drafts,
		Connectivity: h.monitor,
		Bus:          h.bus,
		Clock:        h.clock,
		Logger:       logging.NewNopLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(h.rec.Close)
	return h
}

func (h *harness) types() []events.EventType {
	out := make([]events.EventType, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

func localDraft(title string) drafts.Draft {
	return drafts.Draft{ID: content.NewLocalID(), Fields: content.Fields{"title": title}}
}

func TestSave_OfflineStoresWithoutNetwork(t *testing.T) {
	h := newHarness(t, false)
	d := localDraft("Draft1")

	out, err := h.rec.Save(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusSavedOffline, out.Status)
	assert.Equal(t, d.ID, out.ID)
	assert.Empty(t, h.remote.Calls())
	assert.Empty(t, h.events)

	stored, ok := h.drafts.Get(d.ID)
	require.True(t, ok)
	assert.True(t, stored.OriginIsOffline)
	assert.Equal(t, epoch, stored.SavedAt)
}

func TestSave_OnlineCreatesAndPrunes(t *testing.T) {
	h := newHarness(t, true)
	d := localDraft("Hello")
	require.NoError(t, h.drafts.Put(d))

	out, err := h.rec.Save(context.Background(), d)
	require.NoError(t, err)
	require.True(t, out.Committed())
	assert.Equal(t, "101", out.ID)
	assert.Equal(t, d.ID, out.LocalID)
	assert.Zero(t, h.drafts.Len())

	require.Equal(t, []events.EventType{events.ContentCreated}, h.types())
	change, ok := h.events[0].Data.(content.Change)
	require.True(t, ok)
	assert.Equal(t, "101", change.ID)
	assert.Equal(t, d.ID, change.LocalID)

	assert.Equal(t, "101", h.rec.Resolve(d.ID))
}

func TestSave_OnlineUpdatesExisting(t *testing.T) {
	h := newHarness(t, true)
	out, err := h.rec.Save(context.Background(), drafts.Draft{ID: "7", Fields: content.Fields{"title": "x"}})
	require.NoError(t, err)
	assert.True(t, out.Committed())
	assert.Empty(t, out.LocalID)
	assert.Equal(t, []string{"update 7"}, h.remote.Calls())
	assert.Equal(t, []events.EventType{events.ContentUpdated}, h.types())
}

func TestSave_FailureKeepsDraft(t *testing.T) {
	h := newHarness(t, true)
	h.remote.setFail(errors.NewAPIError("/api/blogs", 503, "down"))
	d := localDraft("keep me")

	for i := 0; i < 3; i++ {
		out, err := h.rec.Save(context.Background(), d)
		require.NoError(t, err, "commit failures are not errors")
		assert.Equal(t, reconcile.StatusPending, out.Status)
		assert.True(t, errors.IsTransient(out.Err))
	}

	assert.Equal(t, 1, h.drafts.Len(), "retries overwrite rather than accumulate")
	assert.Empty(t, h.events)
}

func TestSave_LocalPersistenceFailureIsError(t *testing.T) {
	h := newHarness(t, false)
	h.backend.SetFailSave(fmt.Errorf("disk full"))

	_, err := h.rec.Save(context.Background(), localDraft("x"))
	var ioErr *errors.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestSave_EditDuringCommitIsKept(t *testing.T) {
	h := newHarness(t, true)
	d := localDraft("v1")
	require.NoError(t, h.drafts.Put(d))

	newer := drafts.Draft{ID: d.ID, Fields: content.Fields{"title": "v2"}, SavedAt: epoch.Add(time.Second)}
	h.remote.during = func() { require.NoError(t, h.drafts.Put(newer)) }

	out, err := h.rec.Save(context.Background(), d)
	require.NoError(t, err)
	require.True(t, out.Committed())

	_, ok := h.drafts.Get(d.ID)
	assert.False(t, ok, "local id is not used after commit")
	kept, ok := h.drafts.Get(out.ID)
	require.True(t, ok, "newer edit survives under the remote id")
	assert.Equal(t, "v2", kept.Fields.Title())

	// The next save of the kept draft is an update of the remote item.
	h.remote.during = nil
	out, err = h.rec.Save(context.Background(), kept)
	require.NoError(t, err)
	assert.True(t, out.Committed())
	assert.Equal(t, []string{"create", "update 101"}, h.remote.Calls())
	assert.Zero(t, h.drafts.Len())
}

func TestSave_IdenticalRewriteDuringCommitIsPruned(t *testing.T) {
	h := newHarness(t, true)
	d := localDraft("same")
	d.SavedAt = epoch

	// An autosave tick rewrites the unchanged buffer while the create is
	// in flight.
	rewrite := drafts.Draft{ID: d.ID, Fields: content.Fields{"title": "same"}, SavedAt: epoch.Add(time.Second)}
	h.remote.during = func() { require.NoError(t, h.drafts.Put(rewrite)) }

	out, err := h.rec.Save(context.Background(), d)
	require.NoError(t, err)
	require.True(t, out.Committed())
	assert.Zero(t, h.drafts.Len())

	// Nothing is left for a sweep to resend.
	h.remote.during = nil
	res, err := h.rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Attempted)
	assert.Equal(t, []string{"create"}, h.remote.Calls())
}

func TestSave_CreateWithoutIDStaysPending(t *testing.T) {
	h := newHarness(t, true)
	h.remote.noID = true
	d := localDraft("orphan")

	out, err := h.rec.Save(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusPending, out.Status)
	assert.Equal(t, d.ID, out.ID)
	assert.True(t, errors.IsMalformed(out.Err))
	assert.True(t, errors.IsTransient(out.Err))

	kept, ok := h.drafts.Get(d.ID)
	require.True(t, ok)
	assert.Equal(t, "orphan", kept.Fields.Title())
	assert.Equal(t, d.ID, h.rec.Resolve(d.ID))
	assert.Empty(t, h.events)

	// The next attempt with a proper response commits under the remote id.
	h.remote.noID = false
	out, err = h.rec.Save(context.Background(), kept)
	require.NoError(t, err)
	require.True(t, out.Committed())
	assert.NotEqual(t, d.ID, out.ID)
	require.Equal(t, []events.EventType{events.ContentCreated}, h.types())
	change, ok := h.events[0].Data.(content.Change)
	require.True(t, ok)
	assert.Equal(t, out.ID, change.ID)
	assert.Equal(t, d.ID, change.LocalID)
}

func TestSave_EditDuringFailedCommitIsNotClobbered(t *testing.T) {
	h := newHarness(t, true)
	h.remote.setFail(fmt.Errorf("connection reset"))
	d := drafts.Draft{ID: "5", Fields: content.Fields{"title": "old"}, SavedAt: epoch}

	newer := drafts.Draft{ID: "5", Fields: content.Fields{"title": "new"}, SavedAt: epoch.Add(time.Second)}
	h.remote.during = func() { require.NoError(t, h.drafts.Put(newer)) }

	out, err := h.rec.Save(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusPending, out.Status)

	kept, _ := h.drafts.Get("5")
	assert.Equal(t, "new", kept.Fields.Title())
	assert.Equal(t, 1, h.drafts.Len())
}

func TestSave_StaleLocalIDResolves(t *testing.T) {
	h := newHarness(t, true)
	d := localDraft("first")
	out, err := h.rec.Save(context.Background(), d)
	require.NoError(t, err)
	remoteID := out.ID

	// A writer that still holds the local id saves again.
	stale := drafts.Draft{ID: d.ID, Fields: content.Fields{"title": "second"}}
	require.NoError(t, h.drafts.Put(stale))
	h.monitor.Set(false)
	out, err = h.rec.Save(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, remoteID, out.ID)

	_, ok := h.drafts.Get(d.ID)
	assert.False(t, ok)
	_, ok = h.drafts.Get(remoteID)
	assert.True(t, ok)
}

func TestPublish(t *testing.T) {
	h := newHarness(t, true)
	out, err := h.rec.Publish(context.Background(), localDraft("Launch"))
	require.NoError(t, err)
	require.True(t, out.Committed())
	assert.Equal(t, true, out.Item.Fields["published"])
	assert.Equal(t, "PUBLISHED", out.Item.Fields["status"])
}

func TestPublish_FailureSurfacesButKeepsDraft(t *testing.T) {
	h := newHarness(t, true)
	h.remote.setFail(errors.NewAPIError("/api/blogs", 400, "title too long"))
	d := localDraft("Launch")

	out, err := h.rec.Publish(context.Background(), d)
	var syncErr *errors.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, d.ID, syncErr.DraftID)
	assert.Equal(t, reconcile.StatusPending, out.Status)

	kept, ok := h.drafts.Get(d.ID)
	require.True(t, ok)
	assert.Equal(t, true, kept.Fields["published"])
}

func TestPublish_Offline(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.rec.Publish(context.Background(), localDraft("x"))
	assert.True(t, errors.IsOffline(err))
	assert.Equal(t, 1, h.drafts.Len())
}

func TestDelete(t *testing.T) {
	h := newHarness(t, true)
	out, err := h.rec.Save(context.Background(), localDraft("bye"))
	require.NoError(t, err)
	require.NoError(t, h.drafts.Put(drafts.Draft{ID: out.ID, Fields: content.Fields{"title": "edit"}}))
	h.events = nil

	require.NoError(t, h.rec.Delete(context.Background(), out.ID))
	assert.Zero(t, h.drafts.Len())
	assert.Equal(t, []events.EventType{events.ContentDeleted}, h.types())
	assert.Equal(t, []string{out.ID}, h.remote.deleted)
}

func TestDelete_OfflineRefused(t *testing.T) {
	h := newHarness(t, false)
	err := h.rec.Delete(context.Background(), "9")
	assert.True(t, errors.IsOffline(err))
	assert.Empty(t, h.remote.Calls())
}

func TestDelete_LocalOnlyDraft(t *testing.T) {
	h := newHarness(t, false)
	d := localDraft("never sent")
	require.NoError(t, h.drafts.Put(d))

	require.NoError(t, h.rec.Delete(context.Background(), d.ID))
	assert.Zero(t, h.drafts.Len())
	assert.Empty(t, h.remote.Calls())
}

func TestDelete_RemoteFailure(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.drafts.Put(drafts.Draft{ID: "3", Fields: content.Fields{"title": "t"}}))
	h.remote.setFail(errors.NewAPIError("/api/blogs/3", 404, "gone"))

	err := h.rec.Delete(context.Background(), "3")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 1, h.drafts.Len())
	assert.Empty(t, h.events)
}

func TestNew_Validates(t *testing.T) {
	_, err := reconcile.New(reconcile.Config{})
	assert.True(t, errors.IsValidationError(err))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "saved offline, will sync", reconcile.StatusSavedOffline.String())
	assert.Equal(t, "Status(0)", reconcile.Status(0).String())
}
