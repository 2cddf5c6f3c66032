// Package content defines the blog content vocabulary shared by drafts,
// the reconciler and the remote client.
package content

import (
	"strings"

	"github.com/google/uuid"

	"github.com/agentstation/inkwell/pkg/constants"
)

// Field names the editor and the content service agree on.
const (
	FieldTitle     = "title"
	FieldContent   = "content"
	FieldSummary   = "summary"
	FieldTags      = "tags"
	FieldPublished = "published"
	FieldStatus    = "status"
)

// Post statuses.
const (
	StatusDraft     = "DRAFT"
	StatusPublished = "PUBLISHED"
)

// Fields is an edit buffer: field name to value. Values must be JSON
// encodable.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the named field when it is a string.
func (f Fields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

// Title returns the title field.
func (f Fields) Title() string { return f.String(FieldTitle) }

// Body returns the content field.
func (f Fields) Body() string { return f.String(FieldContent) }

// HasText reports whether the title or content holds non-whitespace text.
func (f Fields) HasText() bool {
	return strings.TrimSpace(f.Title()) != "" || strings.TrimSpace(f.Body()) != ""
}

// WordCount returns the number of whitespace separated words in the
// content field.
func (f Fields) WordCount() int {
	return len(strings.Fields(f.Body()))
}

// ReadingMinutes estimates reading time at 200 words per minute,
// rounded up.
func (f Fields) ReadingMinutes() int {
	const wordsPerMinute = 200
	return (f.WordCount() + wordsPerMinute - 1) / wordsPerMinute
}

// Item is a content item as committed by the content service.
type Item struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields,omitempty"`
}

// Change is the payload emitted on the event bus after a commit.
// LocalID is set when the item was first created under a local id.
type Change struct {
	ID      string `json:"id"`
	LocalID string `json:"localId,omitempty"`
	Item    *Item  `json:"item,omitempty"`
}

// NewLocalID mints an identifier for content that has never been
// committed.
func NewLocalID() string {
	return constants.LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was minted by NewLocalID (or is empty).
func IsLocalID(id string) bool {
	return id == "" || strings.HasPrefix(id, constants.LocalIDPrefix)
}
