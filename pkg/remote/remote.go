// Package remote implements the content and notification stores over
// the blog service's REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/agentstation/inkwell/internal/transport"
	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/notifications"
	"github.com/agentstation/inkwell/pkg/reconcile"
)

// Compile-time interface checks.
var (
	_ reconcile.ContentStore = (*Client)(nil)
	_ notifications.Store    = (*Client)(nil)
)

// Client talks to the blog service.
type Client struct {
	t *transport.Client
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...transport.Option) *Client {
	return &Client{t: transport.New(baseURL, opts...)}
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string { return c.t.BaseURL() }

// Create stores a new post.
func (c *Client) Create(ctx context.Context, fields content.Fields) (content.Item, error) {
	var raw json.RawMessage
	if err := c.t.Do(ctx, http.MethodPost, "/api/blogs", fields, &raw); err != nil {
		return content.Item{}, err
	}
	item, err := decodeItem("POST /api/blogs", raw)
	if err == nil && item.ID == "" {
		return content.Item{}, errors.NewParseError("json", "POST /api/blogs", "post without id", nil)
	}
	return item, err
}

// Update replaces the post with id.
func (c *Client) Update(ctx context.Context, id string, fields content.Fields) (content.Item, error) {
	path := "/api/blogs/" + url.PathEscape(id)
	var raw json.RawMessage
	if err := c.t.Do(ctx, http.MethodPut, path, fields, &raw); err != nil {
		return content.Item{}, err
	}
	item, err := decodeItem("PUT "+path, raw)
	if err == nil && item.ID == "" {
		item.ID = id
	}
	return item, err
}

// Delete removes the post with id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.t.Do(ctx, http.MethodDelete, "/api/blogs/"+url.PathEscape(id), nil, nil)
}

// decodeItem splits a post body into its id and remaining fields.
func decodeItem(endpoint string, raw json.RawMessage) (content.Item, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return content.Item{}, errors.NewParseError("json", endpoint, "empty response body", nil)
	}
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return content.Item{}, errors.NewParseError("json", endpoint, "post is not an object", err)
	}

	var id string
	switch v := fields["id"].(type) {
	case string:
		id = v
	case json.Number:
		id = v.String()
	case nil:
	default:
		return content.Item{}, errors.NewParseError("json", endpoint, fmt.Sprintf("unexpected id %v", v), nil)
	}
	delete(fields, "id")
	return content.Item{ID: id, Fields: content.Fields(fields)}, nil
}

// List returns every notification for userID.
func (c *Client) List(ctx context.Context, userID string) ([]notifications.Notification, error) {
	return c.listNotifications(ctx, "/api/notifications/user/"+url.PathEscape(userID))
}

// ListUnread returns the unread notifications for userID.
func (c *Client) ListUnread(ctx context.Context, userID string) ([]notifications.Notification, error) {
	return c.listNotifications(ctx, "/api/notifications/user/"+url.PathEscape(userID)+"/unread")
}

func (c *Client) listNotifications(ctx context.Context, path string) ([]notifications.Notification, error) {
	var wire []wireNotification
	if err := c.t.Do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]notifications.Notification, 0, len(wire))
	for _, w := range wire {
		if w.ID == "" {
			return nil, errors.NewParseError("json", "GET "+path, "notification without id", nil)
		}
		out = append(out, w.toNotification())
	}
	return out, nil
}

// MarkRead marks one notification read.
func (c *Client) MarkRead(ctx context.Context, notificationID string) error {
	return c.t.Do(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(notificationID)+"/read", nil, nil)
}

// SetPreferences replaces the notification preferences of userID.
func (c *Client) SetPreferences(ctx context.Context, userID string, prefs notifications.Preferences) error {
	return c.t.Do(ctx, http.MethodPut, "/api/notifications/preferences/"+url.PathEscape(userID), prefs, nil)
}
