package drafts

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/agentstation/inkwell/pkg/content"
)

// Reserved keys in the stored representation of a draft. Everything
// else is an edit field; Store rejects edit fields with these names.
const (
	keyID      = "id"
	keySavedAt = "savedAt"
	keyOffline = "isOfflineDraft"
)

var reservedKeys = []string{keyID, keySavedAt, keyOffline}

// Draft is a locally persisted edit that has not been committed.
type Draft struct {
	// ID is a remote item id or a local id from content.NewLocalID.
	ID string
	// Fields is the edit buffer at save time. The names id, savedAt and
	// isOfflineDraft are reserved.
	Fields content.Fields
	// SavedAt is when the draft was last written.
	SavedAt time.Time
	// OriginIsOffline records whether the client was offline at save time.
	OriginIsOffline bool
}

// IsLocal reports whether the draft has never been committed.
func (d Draft) IsLocal() bool { return content.IsLocalID(d.ID) }

// clone returns d with its own copy of Fields.
func (d Draft) clone() Draft {
	d.Fields = d.Fields.Clone()
	return d
}

// MarshalJSON writes the draft as one flat object: the edit fields plus
// id, savedAt and isOfflineDraft.
func (d Draft) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(d.Fields)+3)
	for k, v := range d.Fields {
		flat[k] = v
	}
	flat[keyID] = d.ID
	flat[keySavedAt] = d.SavedAt.UTC().Format(time.RFC3339Nano)
	flat[keyOffline] = d.OriginIsOffline
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat representation written by MarshalJSON.
func (d *Draft) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&flat); err != nil {
		return err
	}

	var out Draft
	switch id := flat[keyID].(type) {
	case string:
		out.ID = id
	case json.Number:
		out.ID = id.String()
	}
	if s, ok := flat[keySavedAt].(string); ok && s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		out.SavedAt = t
	}
	out.OriginIsOffline, _ = flat[keyOffline].(bool)

	delete(flat, keyID)
	delete(flat, keySavedAt)
	delete(flat, keyOffline)
	out.Fields = content.Fields(flat)

	*d = out
	return nil
}
