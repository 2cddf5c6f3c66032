package transport

import (
	"net/http"
	"strings"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (NoAuth) Apply(*http.Request) {}

// BearerAuth sends a bearer token. The token is obtained elsewhere;
// inkwell never stores credentials.
type BearerAuth struct {
	Token string
}

// Apply implements the Authenticator interface for BearerAuth.
func (a BearerAuth) Apply(req *http.Request) {
	if token := strings.TrimSpace(a.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// HeaderAuth sends a token in a custom header.
type HeaderAuth struct {
	Header string
	Token  string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a HeaderAuth) Apply(req *http.Request) {
	if a.Header != "" && a.Token != "" {
		req.Header.Set(a.Header, a.Token)
	}
}

// ForToken returns BearerAuth for a non-empty token and NoAuth otherwise.
func ForToken(token string) Authenticator {
	if strings.TrimSpace(token) == "" {
		return NoAuth{}
	}
	return BearerAuth{Token: token}
}
