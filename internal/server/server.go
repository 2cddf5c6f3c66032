// Package server serves the local status API of a running inkwell
// client: drafts, notifications and connectivity as JSON, Prometheus
// metrics, and a Server-Sent Events stream of sync events for views
// rendered outside the process.
package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell"
	"github.com/agentstation/inkwell/internal/server/sse"
	"github.com/agentstation/inkwell/pkg/connectivity"
	"github.com/agentstation/inkwell/pkg/constants"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/events"
	"github.com/agentstation/inkwell/pkg/logging"
)

// DefaultPathPrefix is the prefix of the JSON API routes.
const DefaultPathPrefix = "/api/v1"

// Config configures a Server.
type Config struct {
	// Addr is the listen address, for example "127.0.0.1:7777".
	Addr string
	// PathPrefix defaults to DefaultPathPrefix.
	PathPrefix string
}

// Server relays a client's state over HTTP.
type Server struct {
	client  *inkwell.Client
	config  Config
	logger  *zerolog.Logger
	stream  *sse.Broadcaster
	relay   *events.Group
	connH   connectivity.Handle
	started time.Time
	handler http.Handler
}

// New creates a Server for c and starts relaying its bus events and
// connectivity transitions to the event stream.
func New(c *inkwell.Client, cfg Config, logger *zerolog.Logger) (*Server, error) {
	if c == nil {
		return nil, &errors.ValidationError{Field: "client", Message: "client is required"}
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = DefaultPathPrefix
	}
	logger = logging.Component(logger, "server")

	s := &Server{
		client:  c,
		config:  cfg,
		logger:  logger,
		stream:  sse.NewBroadcaster(logger),
		relay:   events.NewGroup(c.Bus()),
		started: time.Now(),
	}
	for _, t := range events.Types() {
		if _, err := s.relay.Subscribe(t, s.forward); err != nil {
			s.relay.Close()
			return nil, err
		}
	}
	s.connH = c.Connectivity().OnChange(func(t connectivity.Transition) {
		s.stream.Publish(string(t), map[string]bool{"online": t.Online()})
	})
	s.handler = s.routes()
	return s, nil
}

func (s *Server) forward(e events.Event) {
	s.stream.Publish(string(e.Type), e.Data)
}

// Handler returns the HTTP handler. The event stream only delivers
// while Run is active.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return errors.WrapResource("listen", "server", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. A Server serves at most once.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	go s.stream.Run(streamCtx)

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamCtx },
	}
	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving status API")
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.WrapResource("serve", "server", ln.Addr().String(), err)
		}
		return nil
	case <-ctx.Done():
	}

	// Event streams never finish on their own; end them before Shutdown
	// waits for active requests.
	stopStream()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Server shutdown")
		return err
	}
	s.logger.Info().Msg("Status API stopped")
	return nil
}

// Close stops relaying events. The client itself is left open.
func (s *Server) Close() {
	s.relay.Close()
	s.client.Connectivity().Remove(s.connH)
}
