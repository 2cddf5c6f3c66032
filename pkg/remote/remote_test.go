package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/inkwell/internal/transport"
	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/logging"
	"github.com/agentstation/inkwell/pkg/notifications"
	"github.com/agentstation/inkwell/pkg/remote"
)

func newClient(t *testing.T, h http.HandlerFunc) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return remote.New(srv.URL,
		transport.WithRetries(0, time.Millisecond, time.Millisecond),
		transport.WithRateLimit(0, 0),
		transport.WithLogger(logging.NewNopLogger()),
	)
}

func TestCreate_NumericID(t *testing.T) {
	var got map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/blogs", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `{"id": 42, "title": "Hello", "status": "DRAFT"}`)
	})

	item, err := c.Create(context.Background(), content.Fields{"title": "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "42", item.ID)
	assert.Equal(t, "Hello", item.Fields.Title())
	assert.NotContains(t, item.Fields, "id")
	assert.Equal(t, "Hello", got["title"])
}

func TestUpdate_StringIDAndFallback(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		switch r.URL.Path {
		case "/api/blogs/abc":
			_, _ = io.WriteString(w, `{"id": "abc", "title": "T"}`)
		case "/api/blogs/7":
			_, _ = io.WriteString(w, `{"title": "no id"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	item, err := c.Update(context.Background(), "abc", content.Fields{"title": "T"})
	require.NoError(t, err)
	assert.Equal(t, "abc", item.ID)

	item, err = c.Update(context.Background(), "7", content.Fields{"title": "no id"})
	require.NoError(t, err)
	assert.Equal(t, "7", item.ID)
}

func TestCreate_EmptyBodyIsMalformed(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	_, err := c.Create(context.Background(), content.Fields{"title": "x"})
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err))
}

func TestCreate_WithoutIDIsMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"missing": `{"title": "x"}`,
		"null":    `{"id": null, "title": "x"}`,
		"empty":   `{"id": "", "title": "x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, body)
			})
			item, err := c.Create(context.Background(), content.Fields{"title": "x"})
			require.Error(t, err)
			assert.True(t, errors.IsMalformed(err))
			assert.True(t, errors.IsTransient(err))
			assert.Empty(t, item.ID)
		})
	}
}

func TestCreate_ServerErrorIsTransient(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"down"}`, http.StatusServiceUnavailable)
	})
	_, err := c.Create(context.Background(), content.Fields{"title": "x"})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestDelete(t *testing.T) {
	var path string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.Delete(context.Background(), "9"))
	assert.Equal(t, "/api/blogs/9", path)
}

func TestDelete_NotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := c.Delete(context.Background(), "9")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListNotifications(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/notifications/user/u1":
			_, _ = io.WriteString(w, `[
				{"id": 1, "type": "COMMENT", "category": "community", "priority": "HIGH",
				 "title": "New comment", "message": "hi", "isRead": false,
				 "createdAt": "2026-01-02T10:00:00"},
				{"id": "n2", "title": "Read", "read": true,
				 "createdAt": "2026-01-02T11:00:00Z"}
			]`)
		case "/api/notifications/user/u1/unread":
			_, _ = io.WriteString(w, `[{"id": 1, "isRead": false, "createdAt": "2026-01-02T10:00:00.123"}]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	all, err := c.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, notifications.CategoryCommunity, all[0].Category)
	assert.Equal(t, notifications.PriorityHigh, all[0].Priority)
	assert.False(t, all[0].IsRead)
	assert.Equal(t, time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), all[0].CreatedAt)
	assert.Equal(t, "n2", all[1].ID)
	assert.True(t, all[1].IsRead)

	unread, err := c.ListUnread(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, 123*time.Millisecond, time.Duration(unread[0].CreatedAt.Nanosecond()))
}

func TestListNotifications_MissingID(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"title": "anonymous"}]`)
	})
	_, err := c.List(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err))
}

func TestListNotifications_BadTimestamp(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id": 1, "createdAt": "yesterday"}]`)
	})
	_, err := c.List(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err))
}

func TestMarkReadAndPreferences(t *testing.T) {
	var calls []string
	var prefs notifications.Preferences
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/api/notifications/preferences/u1" {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&prefs))
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.MarkRead(context.Background(), "5"))
	want := notifications.DefaultPreferences()
	want.Push = true
	require.NoError(t, c.SetPreferences(context.Background(), "u1", want))

	assert.Equal(t, []string{
		"PUT /api/notifications/5/read",
		"PUT /api/notifications/preferences/u1",
	}, calls)
	assert.Equal(t, want, prefs)
}
