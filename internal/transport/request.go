package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/inkwell/pkg/errors"
)

// DecodeResponse closes resp and decodes a 2xx JSON body into target.
// A non-2xx status becomes *errors.APIError and an undecodable body
// becomes *errors.ParseError.
func DecodeResponse(resp *http.Response, endpoint string, target any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(endpoint, resp.StatusCode, body)
	}
	if target == nil || len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.NewParseError("json", endpoint, "undecodable response body", err)
	}
	return nil
}

// apiError builds an APIError, taking code and message from a JSON body
// when present.
func apiError(endpoint string, status int, body []byte) *errors.APIError {
	apiErr := errors.NewAPIError(endpoint, status, strings.TrimSpace(string(body)))
	var parsed map[string]any
	if json.Unmarshal(body, &parsed) == nil {
		if code, ok := parsed["code"].(string); ok {
			apiErr.Code = code
		}
		for _, key := range []string{"message", "error"} {
			if msg, ok := parsed[key].(string); ok && strings.TrimSpace(msg) != "" {
				apiErr.Message = msg
				break
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// retryDelay doubles baseDelay per attempt up to maxDelay. A Retry-After
// header in seconds takes precedence, still capped at maxDelay.
func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
