// Package notifications keeps a client-side projection of a user's
// notifications and their unread count in step with the notification
// service.
//
// Marking read is split in two: MarkReadLocal updates the projection
// immediately and ConfirmRead sends it to the service. Polls overwrite
// the projection, except that a poll which started before a local
// mark-read was settled cannot bring that notification back as unread.
package notifications

import (
	"context"
	"time"
)

// Priority of a notification.
type Priority string

// Priorities.
const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Category of a notification.
type Category string

// Categories.
const (
	CategoryContent   Category = "CONTENT"
	CategoryCommunity Category = "COMMUNITY"
	CategoryPlatform  Category = "PLATFORM"
	CategoryEmergency Category = "EMERGENCY"
)

// Notification is one notification as known to the client.
type Notification struct {
	ID        string    `json:"id" yaml:"id"`
	Type      string    `json:"type,omitempty" yaml:"type,omitempty"`
	Category  Category  `json:"category,omitempty" yaml:"category,omitempty"`
	Priority  Priority  `json:"priority,omitempty" yaml:"priority,omitempty"`
	Title     string    `json:"title,omitempty" yaml:"title,omitempty"`
	Message   string    `json:"message,omitempty" yaml:"message,omitempty"`
	IsRead    bool      `json:"isRead" yaml:"is_read"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

// Preferences selects which notifications a user receives and how.
type Preferences struct {
	Email     bool `json:"email" yaml:"email"`
	InApp     bool `json:"inApp" yaml:"in_app"`
	Push      bool `json:"push" yaml:"push"`
	Content   bool `json:"content" yaml:"content"`
	Community bool `json:"community" yaml:"community"`
	Platform  bool `json:"platform" yaml:"platform"`
}

// DefaultPreferences returns the preferences a new user starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		Email:     true,
		InApp:     true,
		Push:      false,
		Content:   true,
		Community: true,
		Platform:  true,
	}
}

// Store is the remote notification service.
type Store interface {
	List(ctx context.Context, userID string) ([]Notification, error)
	ListUnread(ctx context.Context, userID string) ([]Notification, error)
	MarkRead(ctx context.Context, notificationID string) error
	SetPreferences(ctx context.Context, userID string, prefs Preferences) error
}

// Reporter receives failures that must not pass silently, such as a
// mark-read the service did not accept.
type Reporter func(op string, err error)
