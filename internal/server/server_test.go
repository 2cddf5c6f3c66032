package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/inkwell"
	"github.com/agentstation/inkwell/internal/server/response"
	"github.com/agentstation/inkwell/internal/transport"
	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/kv"
	"github.com/agentstation/inkwell/pkg/logging"
	"github.com/agentstation/inkwell/pkg/remote"
)

// upstream is a minimal blog service.
type upstream struct {
	mu     sync.Mutex
	nextID int
}

func (u *upstream) handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/blogs", func(w http.ResponseWriter, req *http.Request) {
		var post map[string]any
		_ = json.NewDecoder(req.Body).Decode(&post)
		u.mu.Lock()
		u.nextID++
		post["id"] = u.nextID
		u.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(post)
	})
	r.Get("/api/notifications/user/{user}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"n1","title":"New comment","category":"community","priority":"high","isRead":false,"createdAt":"2026-03-01T09:00:00Z"},
			{"id":"n2","title":"Weekly digest","category":"platform","priority":"low","isRead":true,"createdAt":"2026-02-28T09:00:00Z"}
		]`))
	})
	r.Get("/api/notifications/user/{user}/unread", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"n1","title":"New comment","isRead":false,"createdAt":"2026-03-01T09:00:00Z"}]`))
	})
	r.Put("/api/notifications/{id}/read", func(http.ResponseWriter, *http.Request) {})
	return r
}

func newTestServer(t *testing.T, opts ...inkwell.Option) (*Server, *inkwell.Client) {
	t.Helper()
	up := httptest.NewServer((&upstream{nextID: 10}).handler())
	t.Cleanup(up.Close)

	rc := remote.New(up.URL,
		transport.WithRetries(0, time.Millisecond, time.Millisecond),
		transport.WithRateLimit(0, 0),
		transport.WithLogger(logging.NewNopLogger()),
	)
	base := []inkwell.Option{
		inkwell.WithRemote(rc),
		inkwell.WithProbe("", 0),
		inkwell.WithStore(kv.NewMemory()),
		inkwell.WithLogger(logging.NewNopLogger()),
	}
	c, err := inkwell.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	s, err := New(c, Config{}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, c
}

func do(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, json.RawMessage) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if rec.Code == http.StatusNoContent || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		return rec, nil
	}
	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *response.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env.Data
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, Config{}, nil)
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	s, c := newTestServer(t, inkwell.WithUserID("u1"))
	p, err := c.Notifications()
	require.NoError(t, err)
	require.NoError(t, p.RefreshUnreadCount(context.Background()))

	rec, data := do(t, s, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var v statusView
	require.NoError(t, json.Unmarshal(data, &v))
	assert.True(t, v.Online)
	assert.Equal(t, 0, v.Pending)
	require.NotNil(t, v.Unread)
	assert.Equal(t, 1, *v.Unread)
}

func TestStatus_WithoutNotifications(t *testing.T) {
	s, _ := newTestServer(t)
	_, data := do(t, s, http.MethodGet, "/api/v1/status")
	assert.NotContains(t, string(data), "unreadNotifications")
}

func TestDrafts(t *testing.T) {
	s, c := newTestServer(t, inkwell.WithInitialOnline(false))
	out, err := c.Save(context.Background(), "", content.Fields{
		content.FieldTitle:   "Offline post",
		content.FieldContent: "written on a plane",
	})
	require.NoError(t, err)

	rec, data := do(t, s, http.MethodGet, "/api/v1/drafts")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []draftView
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, out.ID, list[0].ID)
	assert.Equal(t, "Offline post", list[0].Title)
	assert.True(t, list[0].OriginIsOffline)
	assert.Nil(t, list[0].Fields)

	rec, data = do(t, s, http.MethodGet, "/api/v1/drafts/"+out.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var one draftView
	require.NoError(t, json.Unmarshal(data, &one))
	assert.Equal(t, "written on a plane", one.Fields.Body())

	rec, _ = do(t, s, http.MethodDelete, "/api/v1/drafts/"+out.ID)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, c.PendingCount())

	rec, _ = do(t, s, http.MethodGet, "/api/v1/drafts/"+out.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, s, http.MethodDelete, "/api/v1/drafts/"+out.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSync(t *testing.T) {
	s, c := newTestServer(t, inkwell.WithInitialOnline(false), inkwell.WithSyncOnReconnect(false))
	_, err := c.Save(context.Background(), "", content.Fields{content.FieldTitle: "Queued"})
	require.NoError(t, err)

	rec, _ := do(t, s, http.MethodPost, "/api/v1/sync")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1, c.PendingCount())

	c.Connectivity().Set(true)
	rec, data := do(t, s, http.MethodPost, "/api/v1/sync")
	require.Equal(t, http.StatusOK, rec.Code)
	var v sweepView
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, 1, v.Committed)
	assert.Equal(t, 0, c.PendingCount())
}

func TestNotifications(t *testing.T) {
	s, c := newTestServer(t, inkwell.WithUserID("u1"))
	p, err := c.Notifications()
	require.NoError(t, err)
	require.NoError(t, p.Refresh(context.Background()))

	_, data := do(t, s, http.MethodGet, "/api/v1/notifications")
	assert.Contains(t, string(data), `"n1"`)
	assert.Contains(t, string(data), `"n2"`)

	_, data = do(t, s, http.MethodGet, "/api/v1/notifications?unread=true")
	assert.Contains(t, string(data), `"n1"`)
	assert.NotContains(t, string(data), `"n2"`)

	rec, _ := do(t, s, http.MethodGet, "/api/v1/notifications?unread=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, data = do(t, s, http.MethodPost, "/api/v1/notifications/n1/read")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"id":"n1","marked":true,"unread":0}`, string(data))
	assert.Equal(t, 0, p.UnreadCount())
}

func TestNotifications_NotConfigured(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := do(t, s, http.MethodGet, "/api/v1/notifications")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = do(t, s, http.MethodPost, "/api/v1/notifications/n1/read")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthzAndNotFound(t *testing.T) {
	s, c := newTestServer(t)
	rec, _ := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	c.Connectivity().Set(false)
	rec, _ = do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodPut, "/api/v1/status")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEventStream(t *testing.T) {
	s, c := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/events")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if name, ok := strings.CutPrefix(lines.Text(), "event: "); ok {
				return name
			}
		}
		return ""
	}
	require.Equal(t, "connected", next())
	require.Eventually(t, func() bool { return s.stream.Streams() == 1 }, time.Second, 5*time.Millisecond)

	_, err = c.Save(context.Background(), "", content.Fields{content.FieldTitle: "Live"})
	require.NoError(t, err)
	assert.Equal(t, "content-created", next())

	c.Connectivity().Set(false)
	assert.Equal(t, "went-offline", next())

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
