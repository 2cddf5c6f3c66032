package app

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/inkwell/pkg/constants"
	"github.com/agentstation/inkwell/pkg/errors"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "INKWELL"

// Storage backends for the draft store.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Config holds the CLI configuration from config files, .env files,
// environment variables and flags.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	ConfigFile string

	// Blog service
	ServerURL string
	Token     string
	UserID    string
	RateLimit float64

	// Local state
	StateDir string
	Backend  string

	// Sync behaviour
	AutosaveInterval time.Duration
	PollInterval     time.Duration
	ProbeInterval    time.Duration
	SyncOnReconnect  bool
	Offline          bool

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration in order of precedence:
//  1. Command-line flags (applied later by UpdateFromFlags)
//  2. INKWELL_* environment variables
//  3. .env.local and .env files
//  4. Config file (--config, ./.inkwell.yaml or ~/.inkwell.yaml)
//  5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".inkwell")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !stderrors.As(err, &notFound) {
			return nil, errors.NewParseError("yaml", configFile, "reading config file", err)
		}
	}

	config := &Config{
		Verbose:    v.GetBool("verbose"),
		Quiet:      v.GetBool("quiet"),
		NoColor:    v.GetBool("no_color"),
		Format:     v.GetString("format"),
		ConfigFile: v.ConfigFileUsed(),

		ServerURL: strings.TrimRight(v.GetString("server_url"), "/"),
		Token:     v.GetString("token"),
		UserID:    v.GetString("user_id"),
		RateLimit: v.GetFloat64("rate_limit"),

		StateDir: expandHome(v.GetString("state_dir")),
		Backend:  strings.ToLower(v.GetString("backend")),

		AutosaveInterval: v.GetDuration("autosave_interval"),
		PollInterval:     v.GetDuration("poll_interval"),
		ProbeInterval:    v.GetDuration("probe_interval"),
		SyncOnReconnect:  v.GetBool("sync_on_reconnect"),
		Offline:          v.GetBool("offline"),

		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	stateDir := constants.DefaultStateDir
	if home, err := os.UserHomeDir(); err == nil {
		stateDir = filepath.Join(home, constants.DefaultStateDir)
	}
	v.SetDefault("state_dir", stateDir)
	v.SetDefault("backend", BackendFile)
	v.SetDefault("rate_limit", float64(constants.DefaultRateLimit))
	v.SetDefault("autosave_interval", constants.DefaultAutosaveInterval)
	v.SetDefault("poll_interval", constants.DefaultPollInterval)
	v.SetDefault("probe_interval", constants.DefaultProbeInterval)
	v.SetDefault("sync_on_reconnect", true)
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendBadger, BackendMemory:
	default:
		return &errors.ValidationError{Field: "backend", Value: c.Backend, Message: "must be file, badger or memory"}
	}
	for name, d := range map[string]time.Duration{
		"autosave_interval": c.AutosaveInterval,
		"poll_interval":     c.PollInterval,
		"probe_interval":    c.ProbeInterval,
	} {
		if d <= 0 {
			return &errors.ValidationError{Field: name, Value: d, Message: "must be positive"}
		}
	}
	return nil
}

// UpdateFromFlags applies flag values, which win over every other
// source. Empty strings leave the loaded value in place.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel, serverURL, userID string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if serverURL != "" {
		c.ServerURL = strings.TrimRight(serverURL, "/")
	}
	if userID != "" {
		c.UserID = userID
	}
}

// loadEnvFiles loads .env.local then .env; variables already set win.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		_ = godotenv.Load(file)
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// getEnvOrDefault returns the environment variable value or def.
func getEnvOrDefault(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}
