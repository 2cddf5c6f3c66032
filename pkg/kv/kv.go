// Package kv provides the durable key/value persistence drafts are
// written to. Values are opaque byte slices; callers own serialization.
//
// Three backends are available:
//   - Memory: process-local, for tests and ephemeral sessions
//   - File: one file per key, replaced atomically
//   - Badger: an embedded dgraph-io/badger database
package kv

import (
	"sync"
)

// Store saves and loads values by key.
type Store interface {
	// Save replaces the value stored under key.
	Save(key string, value []byte) error

	// Load returns the value stored under key. ok is false when the key
	// has never been saved.
	Load(key string) (value []byte, ok bool, err error)
}

// Memory is an in-memory Store. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte

	// FailSave, when set, is returned by Save instead of storing.
	FailSave error
	// Saves counts successful Save calls.
	Saves int
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// Save stores a copy of value under key.
func (m *Memory) Save(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.values[key] = append([]byte(nil), value...)
	m.Saves++
	return nil
}

// Load returns a copy of the value under key.
func (m *Memory) Load(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// SetFailSave sets or clears the error returned by Save.
func (m *Memory) SetFailSave(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailSave = err
}

// SaveCount returns the number of successful Save calls.
func (m *Memory) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Saves
}
