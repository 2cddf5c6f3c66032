package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/inkwell/pkg/clock"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/events"
	"github.com/agentstation/inkwell/pkg/logging"
)

func newBus(t *testing.T) (*events.Bus, *logging.TestLogger) {
	t.Helper()
	tl := logging.NewTestLogger(t)
	return events.NewBus(events.WithLogger(tl.Logger)), tl
}

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus, _ := newBus(t)
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		_, err := bus.Subscribe(events.ContentCreated, func(events.Event) { order = append(order, name) })
		require.NoError(t, err)
	}

	require.NoError(t, bus.Emit(events.ContentCreated, nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestBus_EventCarriesTypeDataAndTime(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	bus := events.NewBus(events.WithClock(clock.Fake(now)), events.WithLogger(logging.NewNopLogger()))

	var got events.Event
	_, err := bus.Subscribe(events.ContentUpdated, func(e events.Event) { got = e })
	require.NoError(t, err)
	require.NoError(t, bus.Emit(events.ContentUpdated, "42"))

	assert.Equal(t, events.ContentUpdated, got.Type)
	assert.Equal(t, "42", got.Data)
	assert.Equal(t, now, got.Timestamp)
}

func TestBus_OnlyMatchingType(t *testing.T) {
	bus, _ := newBus(t)
	calls := 0
	_, err := bus.Subscribe(events.ContentDeleted, func(events.Event) { calls++ })
	require.NoError(t, err)

	require.NoError(t, bus.Emit(events.ContentCreated, nil))
	assert.Zero(t, calls)
}

func TestBus_UnknownTypeRejected(t *testing.T) {
	bus, _ := newBus(t)

	_, err := bus.Subscribe("content-archived", func(events.Event) {})
	assert.True(t, errors.IsValidationError(err))

	err = bus.Emit("content-archived", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

// Unsubscribing a handler inside its own delivery does not stop later
// handlers in the same emit, and the handler is gone for the next emit.
func TestBus_UnsubscribeDuringDelivery(t *testing.T) {
	bus, _ := newBus(t)
	c1, c2 := 0, 0

	var h1 events.Handle
	var err error
	h1, err = bus.Subscribe(events.ContentListRefresh, func(events.Event) {
		c1++
		bus.Unsubscribe(h1)
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(events.ContentListRefresh, func(events.Event) { c2++ })
	require.NoError(t, err)

	require.NoError(t, bus.Emit(events.ContentListRefresh, nil))
	assert.Equal(t, 1, c1)
	assert.Equal(t, 1, c2)

	require.NoError(t, bus.Emit(events.ContentListRefresh, nil))
	assert.Equal(t, 1, c1)
	assert.Equal(t, 2, c2)
}

func TestBus_UnsubscribeLaterHandlerDuringDelivery(t *testing.T) {
	bus, _ := newBus(t)
	var h2 events.Handle
	c2 := 0

	_, err := bus.Subscribe(events.ContentCreated, func(events.Event) { bus.Unsubscribe(h2) })
	require.NoError(t, err)
	h2, err = bus.Subscribe(events.ContentCreated, func(events.Event) { c2++ })
	require.NoError(t, err)

	require.NoError(t, bus.Emit(events.ContentCreated, nil))
	assert.Equal(t, 1, c2, "handler subscribed at emit time still receives it")

	require.NoError(t, bus.Emit(events.ContentCreated, nil))
	assert.Equal(t, 1, c2)
}

func TestBus_SubscribeDuringDelivery(t *testing.T) {
	bus, _ := newBus(t)
	late := 0
	_, err := bus.Subscribe(events.ContentCreated, func(events.Event) {
		_, _ = bus.Subscribe(events.ContentCreated, func(events.Event) { late++ })
	})
	require.NoError(t, err)

	require.NoError(t, bus.Emit(events.ContentCreated, nil))
	assert.Zero(t, late)

	require.NoError(t, bus.Emit(events.ContentCreated, nil))
	assert.Equal(t, 1, late)
}

func TestBus_PanickingHandlerIsIsolated(t *testing.T) {
	bus, tl := newBus(t)
	after := 0
	_, err := bus.Subscribe(events.ContentUpdated, func(events.Event) { panic("render failed") })
	require.NoError(t, err)
	_, err = bus.Subscribe(events.ContentUpdated, func(events.Event) { after++ })
	require.NoError(t, err)

	require.NotPanics(t, func() { _ = bus.Emit(events.ContentUpdated, nil) })
	assert.Equal(t, 1, after)
	tl.AssertContains(t, "render failed")
	tl.AssertContains(t, "Event handler failed")
}

func TestBus_SameFunctionUnderSeveralTypes(t *testing.T) {
	bus, _ := newBus(t)
	var seen []events.EventType
	fn := func(e events.Event) { seen = append(seen, e.Type) }

	hc, err := bus.Subscribe(events.ContentCreated, fn)
	require.NoError(t, err)
	_, err = bus.Subscribe(events.ContentDeleted, fn)
	require.NoError(t, err)

	assert.True(t, bus.Unsubscribe(hc))
	assert.False(t, bus.Unsubscribe(hc))

	require.NoError(t, bus.Emit(events.ContentCreated, nil))
	require.NoError(t, bus.Emit(events.ContentDeleted, nil))
	assert.Equal(t, []events.EventType{events.ContentDeleted}, seen)
	assert.Zero(t, bus.Count(events.ContentCreated))
}

// A handler receives an emission iff it was subscribed when Emit started.
func TestBus_SnapshotProperty(t *testing.T) {
	bus, _ := newBus(t)
	const n = 6
	handles := make([]events.Handle, n)
	counts := make([]int, n)
	subscribed := make([]bool, n)

	subscribe := func(i int) {
		h, err := bus.Subscribe(events.ContentListRefresh, func(events.Event) {
			counts[i]++
			// Each delivery toggles the next handler.
			j := (i + 1) % n
			if subscribed[j] {
				bus.Unsubscribe(handles[j])
				subscribed[j] = false
			}
		})
		require.NoError(t, err)
		handles[i] = h
		subscribed[i] = true
	}
	for i := 0; i < n; i += 2 {
		subscribe(i)
	}

	for round := 0; round < 4; round++ {
		expected := make([]int, n)
		copy(expected, counts)
		for i := range subscribed {
			if subscribed[i] {
				expected[i]++
			}
		}
		require.NoError(t, bus.Emit(events.ContentListRefresh, round))
		assert.Equal(t, expected, counts, "round %d", round)

		for i := range subscribed {
			if !subscribed[i] {
				subscribe(i)
				break
			}
		}
	}
}

func TestGroup_CloseRemovesAll(t *testing.T) {
	bus, _ := newBus(t)
	group := events.NewGroup(bus)
	calls := 0

	for _, typ := range events.Types() {
		_, err := group.Subscribe(typ, func(events.Event) { calls++ })
		require.NoError(t, err)
	}
	assert.Equal(t, 4, group.Len())

	group.Close()
	group.Close()
	for _, typ := range events.Types() {
		require.NoError(t, bus.Emit(typ, nil))
		assert.Zero(t, bus.Count(typ))
	}
	assert.Zero(t, calls)

	_, err := group.Subscribe(events.ContentCreated, func(events.Event) {})
	assert.ErrorIs(t, err, errors.ErrClosed)
}
