// Package schedule runs a function periodically on a clock.Clock.
//
// A Task runs fn once per interval, never concurrently with itself. Stop
// cancels the context passed to fn, prevents further runs and waits for
// an in-flight run to return.
package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell/pkg/clock"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/logging"
)

// Func is the work a Task runs on each tick.
type Func func(ctx context.Context) error

// Task is a periodic job. The zero value is not usable; create one with New.
type Task struct {
	name     string
	interval time.Duration
	fn       Func
	clock    clock.Clock
	logger   *zerolog.Logger

	mu      sync.Mutex // guards timer, ctx, cancel, started, gen
	timer   *clock.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	gen     uint64

	exec    sync.Mutex // held while fn runs
	stopped atomic.Bool
}

// New creates a Task named name that runs fn every interval.
func New(name string, interval time.Duration, fn Func, c clock.Clock, logger *zerolog.Logger) *Task {
	return &Task{
		name:     name,
		interval: interval,
		fn:       fn,
		clock:    clock.OrReal(c),
		logger:   logging.Component(logger, name),
	}
}

// Start arms the first tick one interval from now. Starting a running
// task is a no-op; a stopped task can be started again.
func (t *Task) Start() error {
	if t.interval <= 0 {
		return &errors.ValidationError{
			Field:   "interval",
			Value:   t.interval,
			Message: "schedule interval must be positive",
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.started = true
	t.gen++
	t.stopped.Store(false)
	t.armLocked()
	return nil
}

func (t *Task) armLocked() {
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.interval, func() { t.tick(gen) })
}

// currentLocked reports whether gen is the live generation of a running task.
func (t *Task) currentLocked(gen uint64) bool {
	return t.started && gen == t.gen && !t.stopped.Load()
}

func (t *Task) tick(gen uint64) {
	t.exec.Lock()
	t.mu.Lock()
	if !t.currentLocked(gen) {
		t.mu.Unlock()
		t.exec.Unlock()
		return
	}
	ctx := t.ctx
	t.mu.Unlock()

	if err := t.fn(ctx); err != nil && ctx.Err() == nil {
		t.logger.Warn().Err(err).Msg("Scheduled run failed")
	}
	t.exec.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currentLocked(gen) {
		t.armLocked()
	}
}

// RunNow runs fn immediately on the caller's goroutine, serialized with
// scheduled runs. It does nothing once the task is stopped.
func (t *Task) RunNow(ctx context.Context) error {
	t.exec.Lock()
	defer t.exec.Unlock()
	if t.stopped.Load() {
		return errors.ErrClosed
	}
	return t.fn(ctx)
}

// Running reports whether the task is started and not stopped.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started && !t.stopped.Load()
}

// Stop cancels pending and in-flight runs and waits for an in-flight run
// to return. Stop must not be called from inside fn.
func (t *Task) Stop() {
	t.stopped.Store(true)

	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.started = false
	t.mu.Unlock()

	// Wait for an in-flight run.
	t.exec.Lock()
	t.exec.Unlock() //nolint:staticcheck // empty critical section is a barrier
}
