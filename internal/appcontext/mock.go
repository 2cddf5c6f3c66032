package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell"
	"github.com/agentstation/inkwell/pkg/logging"
)

// Mock implements Interface for command tests. Nil function fields
// return zero values.
type Mock struct {
	ClientFunc func() (*inkwell.Client, error)
	Log        *zerolog.Logger
	Format     string
}

var _ Interface = (*Mock)(nil)

// Client returns ClientFunc's client.
func (m *Mock) Client() (*inkwell.Client, error) {
	if m.ClientFunc != nil {
		return m.ClientFunc()
	}
	return nil, nil
}

// Logger returns Log or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return logging.NewNopLogger()
}

// OutputFormat returns Format.
func (m *Mock) OutputFormat() string { return m.Format }

// Version returns "test".
func (m *Mock) Version() string { return "test" }

// Commit returns "none".
func (m *Mock) Commit() string { return "none" }

// Date returns "unknown".
func (m *Mock) Date() string { return "unknown" }
