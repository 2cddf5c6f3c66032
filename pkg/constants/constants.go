// Package constants provides shared constants used throughout the inkwell codebase.
// This includes intervals, timeouts, storage keys, and file permissions that
// should be consistent across the library and the CLI.
package constants

import "time"

// Interval constants define how often background work runs
const (
	// DefaultAutosaveInterval is the period of the editor autosave timer
	DefaultAutosaveInterval = 30 * time.Second

	// DefaultPollInterval is the period of the notification unread-count poll
	DefaultPollInterval = 30 * time.Second

	// DefaultProbeInterval is the period of the connectivity probe
	DefaultProbeInterval = 15 * time.Second
)

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for requests to the content service
	DefaultHTTPTimeout = 30 * time.Second

	// ProbeTimeout bounds a single connectivity probe request
	ProbeTimeout = 5 * time.Second

	// DefaultTimeout is the standard timeout for general operations
	DefaultTimeout = 10 * time.Second

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 2 * time.Minute

	// ShutdownTimeout bounds graceful shutdown of the watch HTTP server
	ShutdownTimeout = 5 * time.Second
)

// Retry constants for remote calls
const (
	// MaxRetries is the maximum number of retry attempts for a failed request
	MaxRetries = 3

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 250 * time.Millisecond

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 5 * time.Second
)

// Rate limiting constants
const (
	// DefaultRateLimit is the default requests per second to the content service
	DefaultRateLimit = 10

	// BurstSize is the token bucket burst size for rate limiting
	BurstSize = 5
)

// Storage constants
const (
	// DraftsKey is the storage key holding the serialized draft collection
	DraftsKey = "blogDrafts"

	// LocalIDPrefix marks identifiers minted for content that has never
	// been committed to the server
	LocalIDPrefix = "local-"

	// DefaultStateDir is the directory under the user's home holding local state
	DefaultStateDir = ".inkwell"
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for local state that may hold unpublished content (rw-------)
	SecureFilePermissions = 0600
)
