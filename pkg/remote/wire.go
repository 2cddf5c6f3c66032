package remote

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/agentstation/inkwell/pkg/notifications"
)

// flexID accepts ids encoded as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// timeLayouts are tried in order; the service emits zone-less local
// date-times.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// flexTime accepts RFC 3339 and zone-less timestamps (read as UTC).
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || strings.TrimSpace(s) == "" {
		*f = flexTime(time.Time{})
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime(t.UTC())
			return nil
		}
	}
	return &time.ParseError{Layout: time.RFC3339, Value: s, Message: ": unrecognized timestamp"}
}

type wireNotification struct {
	ID        flexID   `json:"id"`
	Type      string   `json:"type"`
	Category  string   `json:"category"`
	Priority  string   `json:"priority"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	IsRead    *bool    `json:"isRead"`
	Read      *bool    `json:"read"`
	CreatedAt flexTime `json:"createdAt"`
}

func (w wireNotification) toNotification() notifications.Notification {
	isRead := false
	switch {
	case w.IsRead != nil:
		isRead = *w.IsRead
	case w.Read != nil:
		isRead = *w.Read
	}
	return notifications.Notification{
		ID:        string(w.ID),
		Type:      w.Type,
		Category:  notifications.Category(strings.ToUpper(w.Category)),
		Priority:  notifications.Priority(strings.ToUpper(w.Priority)),
		Title:     w.Title,
		Message:   w.Message,
		IsRead:    isRead,
		CreatedAt: time.Time(w.CreatedAt),
	}
}
