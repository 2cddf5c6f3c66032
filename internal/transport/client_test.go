package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/logging"
)

func newTestClient(url string, opts ...Option) *Client {
	base := []Option{
		WithRetries(2, time.Millisecond, 5*time.Millisecond),
		WithRateLimit(0, 0),
		WithLogger(logging.NewNopLogger()),
	}
	return New(url, append(base, opts...)...)
}

func TestDo_DecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/blogs", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id": 7}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL+"/", WithAuth(ForToken("secret")))
	var out map[string]any
	require.NoError(t, c.Do(context.Background(), http.MethodPost, "/api/blogs", map[string]string{"title": "x"}, &out))
	assert.EqualValues(t, 7, out["id"])
}

func TestDo_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(srv.URL).Do(context.Background(), http.MethodGet, "/x", nil, nil))
	assert.EqualValues(t, 3, calls.Load())
}

func TestDo_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":"maintenance","message":"back soon"}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Do(context.Background(), http.MethodGet, "/x", nil, nil)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "maintenance", apiErr.Code)
	assert.Equal(t, "back soon", apiErr.Message)
	assert.True(t, errors.IsTransient(err))
	assert.EqualValues(t, 3, calls.Load())
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Do(context.Background(), http.MethodPut, "/x", nil, nil)
	assert.Error(t, err)
	assert.False(t, errors.IsTransient(err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestDo_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	var out map[string]any
	err := newTestClient(srv.URL).Do(context.Background(), http.MethodGet, "/x", nil, &out)
	assert.True(t, errors.IsMalformed(err))
	assert.True(t, errors.IsTransient(err))
}

func TestDo_TransportErrorRetriedThenWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := newTestClient(url).Do(context.Background(), http.MethodGet, "/x", nil, nil)
	var resErr *errors.ResourceError
	require.ErrorAs(t, err, &resErr)
	assert.True(t, errors.IsTransient(err))
}

func TestDo_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newTestClient(srv.URL).Do(ctx, http.MethodGet, "/x", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryDelay(t *testing.T) {
	c := New("http://example", WithRetries(5, 100*time.Millisecond, time.Second))
	assert.Equal(t, 100*time.Millisecond, c.retryDelay(1, ""))
	assert.Equal(t, 200*time.Millisecond, c.retryDelay(2, ""))
	assert.Equal(t, 800*time.Millisecond, c.retryDelay(4, ""))
	assert.Equal(t, time.Second, c.retryDelay(5, ""))
	assert.Equal(t, time.Second, c.retryDelay(1, "30"))
	assert.Equal(t, 100*time.Millisecond, c.retryDelay(1, "soon"))
}

func TestAuthenticators(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ForToken("  ").Apply(req)
	assert.Empty(t, req.Header.Get("Authorization"))

	HeaderAuth{Header: "X-Api-Key", Token: "k"}.Apply(req)
	assert.Equal(t, "k", req.Header.Get("X-Api-Key"))
}
