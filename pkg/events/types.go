// Package events provides the in-process event bus that tells views when
// content changed.
//
// Events are "go re-fetch" signals: a handler should reload what it shows
// from the content service rather than trust the payload as the source of
// truth. Delivery is synchronous, in subscription order, to the handlers
// subscribed at the moment Emit is called.
package events

import (
	"time"

	"github.com/agentstation/inkwell/pkg/errors"
)

// EventType names a kind of content change.
type EventType string

// Event types. Adding a type is a compatible change; renaming one is not.
const (
	ContentCreated     EventType = "content-created"
	ContentUpdated     EventType = "content-updated"
	ContentDeleted     EventType = "content-deleted"
	ContentListRefresh EventType = "content-list-refresh"
)

// Types returns every known event type.
func Types() []EventType {
	return []EventType{ContentCreated, ContentUpdated, ContentDeleted, ContentListRefresh}
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case ContentCreated, ContentUpdated, ContentDeleted, ContentListRefresh:
		return true
	}
	return false
}

// String returns the wire name of the event type.
func (t EventType) String() string { return string(t) }

func validate(t EventType) error {
	if t.Valid() {
		return nil
	}
	return &errors.ValidationError{
		Field:   "type",
		Value:   string(t),
		Message: "unknown event type",
	}
}

// Event is one emission delivered to handlers.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Handler receives events.
type Handler func(Event)
