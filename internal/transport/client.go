// Package transport is the HTTP layer under the remote stores: base URL
// handling, authentication, client-side rate limiting and retries with
// capped exponential backoff.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/agentstation/inkwell/pkg/clock"
	"github.com/agentstation/inkwell/pkg/constants"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/logging"
)

// Client performs JSON requests against one base URL.
type Client struct {
	baseURL    string
	http       *http.Client
	auth       Authenticator
	limiter    *rate.Limiter
	clock      clock.Clock
	logger     *zerolog.Logger
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithAuth sets the authenticator.
func WithAuth(auth Authenticator) Option {
	return func(c *Client) {
		if auth != nil {
			c.auth = auth
		}
	}
}

// WithRateLimit limits requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetries sets the retry budget and backoff bounds.
func WithRetries(maxRetries int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if baseDelay > 0 {
			c.baseDelay = baseDelay
		}
		if maxDelay > 0 {
			c.maxDelay = maxDelay
		}
	}
}

// WithClock sets the clock used for backoff waits.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clock.OrReal(clk) }
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(logger, "transport") }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: constants.DefaultHTTPTimeout},
		auth:       NoAuth{},
		limiter:    rate.NewLimiter(rate.Limit(constants.DefaultRateLimit), constants.BurstSize),
		clock:      clock.Real(),
		logger:     logging.Component(nil, "transport"),
		userAgent:  "inkwell",
		maxRetries: constants.MaxRetries,
		baseDelay:  constants.RetryBackoff,
		maxDelay:   constants.MaxRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base URL requests are made against.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends method path with in encoded as the JSON body (nil for none)
// and decodes a 2xx JSON response into out (nil to discard).
// Transport errors, 429 and 5xx responses are retried.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return errors.WrapResource("encode", "request", method+" "+path, err)
		}
	}
	url := c.baseURL + path

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		resp, err := c.send(ctx, method, url, body)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt < c.maxRetries {
				c.logger.Debug().Err(err).Str("url", url).Int("attempt", attempt+1).Msg("Request failed, retrying")
				if werr := c.wait(ctx, c.retryDelay(attempt+1, "")); werr != nil {
					return werr
				}
				continue
			}
			return errors.WrapResource("send", "request", method+" "+path, err)
		}

		if retryable(resp.StatusCode) && attempt < c.maxRetries {
			retryAfter := resp.Header.Get("Retry-After")
			drain(resp)
			c.logger.Debug().Int("status", resp.StatusCode).Str("url", url).Int("attempt", attempt+1).Msg("Retryable response")
			if werr := c.wait(ctx, c.retryDelay(attempt+1, retryAfter)); werr != nil {
				return werr
			}
			continue
		}
		return DecodeResponse(resp, method+" "+path, out)
	}
}

func (c *Client) send(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	c.auth.Apply(req)
	return c.http.Do(req)
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
