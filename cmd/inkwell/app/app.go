// Package app wires configuration, logging and the inkwell client for
// the CLI.
package app

import (
	"context"
	"io"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell"
	"github.com/agentstation/inkwell/internal/appcontext"
	"github.com/agentstation/inkwell/internal/transport"
	"github.com/agentstation/inkwell/pkg/constants"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/kv"
	"github.com/agentstation/inkwell/pkg/remote"
)

var _ appcontext.Interface = (*App)(nil)

// App holds the CLI dependencies. The client is created on first use.
type App struct {
	version string
	commit  string
	date    string

	config *Config
	logger *zerolog.Logger
	out    io.Writer

	mu     sync.Mutex
	client *inkwell.Client
	closer io.Closer // storage backend, when it needs closing
}

// Option configures an App.
type Option func(*App) error

// WithConfig replaces the loaded configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithOutput sends command output to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.out = w
		return nil
	}
}

// WithClient uses an existing client.
func WithClient(c *inkwell.Client) Option {
	return func(a *App) error {
		a.client = c
		return nil
	}
}

// New creates an App, loading configuration from the environment.
func New(version, commit, date string, opts ...Option) (*App, error) {
	a := &App{version: version, commit: commit, date: date}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, errors.WrapResource("load", "config", "", err)
		}
		a.config = config
	}
	if a.logger == nil {
		logger := NewLogger(a.config)
		a.logger = &logger
	}
	return a, nil
}

// Version returns the version.
func (a *App) Version() string { return a.version }

// Commit returns the git commit.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// Config returns the configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// OutputFormat returns the requested output format.
func (a *App) OutputFormat() string { return a.config.Format }

// Client returns the inkwell client, creating it on first use.
func (a *App) Client() (*inkwell.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}

	if a.config.ServerURL == "" {
		return nil, &errors.ValidationError{Field: "server_url", Message: "set --server or " + EnvPrefix + "_SERVER_URL"}
	}
	store, closer, err := a.openStore()
	if err != nil {
		return nil, err
	}

	rc := remote.New(a.config.ServerURL,
		transport.WithAuth(transport.ForToken(a.config.Token)),
		transport.WithRateLimit(a.config.RateLimit, constants.BurstSize),
		transport.WithUserAgent("inkwell/"+a.version),
		transport.WithLogger(a.logger),
	)

	probeURL := a.config.ServerURL
	if a.config.Offline {
		probeURL = ""
	}
	c, err := inkwell.New(
		inkwell.WithRemote(rc),
		inkwell.WithUserID(a.config.UserID),
		inkwell.WithStore(store),
		inkwell.WithAutosaveInterval(a.config.AutosaveInterval),
		inkwell.WithPollInterval(a.config.PollInterval),
		inkwell.WithProbe(probeURL, a.config.ProbeInterval),
		inkwell.WithInitialOnline(!a.config.Offline),
		inkwell.WithSyncOnReconnect(a.config.SyncOnReconnect),
		inkwell.WithErrorReporter(func(op string, err error) {
			a.logger.Error().Err(err).Str("operation", op).Msg("Background operation failed")
		}),
		inkwell.WithLogger(a.logger),
	)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	a.client = c
	a.closer = closer
	return c, nil
}

// openStore opens the configured draft storage backend.
func (a *App) openStore() (kv.Store, io.Closer, error) {
	switch a.config.Backend {
	case BackendMemory:
		return kv.NewMemory(), nil, nil
	case BackendBadger:
		db, err := kv.OpenBadger(filepath.Join(a.config.StateDir, "badger"), a.logger)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	default:
		f, err := kv.NewFile(filepath.Join(a.config.StateDir, "drafts"))
		if err != nil {
			return nil, nil, err
		}
		return f, nil, nil
	}
}

// Shutdown closes the client and the storage backend.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	c, closer := a.client, a.closer
	a.client, a.closer = nil, nil
	a.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		var err error
		if c != nil {
			err = c.Close()
		}
		if closer != nil {
			if cerr := closer.Close(); cerr != nil && err == nil {
				err = errors.WrapIO("close", a.config.StateDir, cerr)
			}
		}
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
