// Package appcontext defines what CLI commands need from the
// application, so command packages do not depend on the app package.
package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell"
)

// Interface is implemented by the CLI App.
type Interface interface {
	// Client returns the shared inkwell client, creating it on first use.
	Client() (*inkwell.Client, error)

	// Logger returns the configured logger.
	Logger() *zerolog.Logger

	// OutputFormat returns the requested output format, possibly empty.
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string
}
