package reconcile_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/agentstation/inkwell/pkg/content"
)

// fakeRemote is an in-memory content service.
type fakeRemote struct {
	mu      sync.Mutex
	nextID  int
	items   map[string]content.Fields
	fail    error
	calls   []string
	during  func() // runs inside each call, simulating work done while suspended
	deleted []string
	noID    bool // Create answers without an id
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 100, items: map[string]content.Fields{}}
}

func (f *fakeRemote) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeRemote) record(call string) (error, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail, f.during
}

func (f *fakeRemote) Create(_ context.Context, fields content.Fields) (content.Item, error) {
	err, during := f.record("create")
	if during != nil {
		during()
	}
	if err != nil {
		return content.Item{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := strconv.Itoa(f.nextID)
	f.items[id] = fields.Clone()
	if f.noID {
		return content.Item{Fields: fields.Clone()}, nil
	}
	return content.Item{ID: id, Fields: fields.Clone()}, nil
}

func (f *fakeRemote) Update(_ context.Context, id string, fields content.Fields) (content.Item, error) {
	err, during := f.record("update " + id)
	if during != nil {
		during()
	}
	if err != nil {
		return content.Item{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id] = fields.Clone()
	return content.Item{ID: id, Fields: fields.Clone()}, nil
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	err, _ := f.record("delete " + id)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return fmt.Errorf("no item %s", id)
	}
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
