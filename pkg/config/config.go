package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/telebridge/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the Telebridge configuration.
//
// This structure captures the static configuration of the bridge process:
//   - Logging configuration
//   - Telemetry/tracing configuration
//   - Telegram application credentials (bot and user identities)
//   - Drive OAuth client settings
//   - OAuth callback server settings
//   - Transfer pipeline tuning (part size, worker count, retries)
//   - Outbound message pacing
//
// Dynamic state (drive sessions, queued transfer tasks) lives in the
// databases under storage.state_dir and is never written to this file.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (TELEBRIDGE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Telegram carries the chat platform credentials for both identities
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`

	// Drive configures the OneDrive OAuth client used for uploads
	Drive DriveConfig `mapstructure:"drive" yaml:"drive"`

	// Server configures the HTTPS OAuth callback server
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Storage locates the on-disk task and session databases
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Transfer tunes the upload pipeline
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`

	// Pacer tunes the per-chat outbound message pacing window
	Pacer PacerConfig `mapstructure:"pacer" yaml:"pacer"`

	// Progress tunes the live progress aggregator
	Progress ProgressConfig `mapstructure:"progress" yaml:"progress"`

	// AutoDelete deletes the triggering message after a successful upload.
	// Runtime /autoDelete commands toggle the live value; this is only the
	// value at startup.
	AutoDelete bool `mapstructure:"auto_delete" yaml:"auto_delete"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`

	// MaxAge is the number of days rotated log files are kept before the
	// cleaner removes them. Only used when Output is a file path.
	// Default: 7
	MaxAge int `mapstructure:"max_age" validate:"omitempty,min=1" yaml:"max_age"`

	// MaxSize is the size in megabytes at which the log file is rotated.
	// Only used when Output is a file path.
	// Default: 50
	MaxSize int `mapstructure:"max_size" validate:"omitempty,min=1" yaml:"max_size"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	// Set to false in production with a TLS-enabled collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// 1.0 = sample all traces, 0.5 = sample 50%, 0.0 = no sampling
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
// When enabled, CPU and memory profiles are continuously sent to a Pyroscope server
// for flame graph visualization and performance analysis.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_space, inuse_space, goroutines, mutex, block
	// Default: ["cpu", "alloc_space", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// TelegramConfig carries the credentials for the two Telegram identities
// the bridge runs: the bot (receives commands, posts replies) and the user
// account (reads restricted media the bot cannot see).
//
// Credentials are not validated here. The start command checks for them
// and prints which flags are missing, which gives a friendlier message
// than a struct validation error.
type TelegramConfig struct {
	// APIID is the Telegram application identifier from my.telegram.org
	APIID int `mapstructure:"api_id" validate:"omitempty,gt=0" yaml:"api_id"`

	// APIHash is the Telegram application hash paired with APIID
	APIHash string `mapstructure:"api_hash" yaml:"api_hash"`

	// BotToken authenticates the bot identity (from @BotFather)
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`

	// User holds the user-identity login credentials
	User UserConfig `mapstructure:"user" yaml:"user"`

	// SessionDir is where MTProto session files are persisted between runs
	SessionDir string `mapstructure:"session_dir" validate:"required" yaml:"session_dir"`

	// AllowedUsers is the list of usernames permitted to drive the bot.
	// Defaults to the user identity's own username.
	AllowedUsers []string `mapstructure:"allowed_users" yaml:"allowed_users,omitempty"`
}

// UserConfig identifies the Telegram user account media is fetched with.
type UserConfig struct {
	// Phone is the account's phone number in international format
	Phone string `mapstructure:"phone" yaml:"phone"`

	// Password is the two-step verification password, if the account has one
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// Name is the account's username without the leading @
	Name string `mapstructure:"name" yaml:"name"`
}

// DriveConfig configures the OneDrive OAuth client used for uploads.
type DriveConfig struct {
	// ClientID is the OAuth application (client) id
	ClientID string `mapstructure:"client_id" yaml:"client_id"`

	// ClientSecret is the OAuth client secret
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`

	// RootPath is the default destination folder for uploads. Must be
	// absolute. Each logged-in account keeps its own copy that /dir
	// commands adjust at runtime.
	// Default: "/"
	RootPath string `mapstructure:"root_path" yaml:"root_path"`
}

// ServerConfig configures the HTTPS callback server that completes the
// OAuth code exchanges for both providers.
type ServerConfig struct {
	// URL is the public base URL the OAuth providers redirect back to.
	// The drive redirect URI is URL + "/auth".
	// Default: "https://127.0.0.1:8443"
	URL string `mapstructure:"url" validate:"omitempty,url" yaml:"url"`

	// Listen is the local address the callback server binds to
	// Default: ":8443"
	Listen string `mapstructure:"listen" yaml:"listen"`

	// CertFile and KeyFile point at the PEM pair served by the callback
	// server. When the pair cannot be read, a self-signed certificate for
	// 127.0.0.1 and localhost is generated at startup instead.
	CertFile string `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile  string `mapstructure:"key_file" yaml:"key_file"`
}

// StorageConfig locates the on-disk state of the bridge.
type StorageConfig struct {
	// StateDir holds the task queue and drive session databases. The task
	// database is truncated on every start (stale upload URLs are useless
	// after a restart gap); the session database is not.
	StateDir string `mapstructure:"state_dir" validate:"required" yaml:"state_dir"`

	// Resume keeps queued tasks across restarts instead of truncating:
	// in-flight rows are reset to waiting and their uploads continue from
	// the byte range the upload session reports. Only useful when
	// restarts are quick enough for the upload session URLs to still be
	// valid.
	// Default: false
	Resume bool `mapstructure:"resume" yaml:"resume"`
}

// TransferConfig tunes the upload pipeline.
type TransferConfig struct {
	// PartSize is the upload part size. The drive's resumable upload
	// contract requires a positive multiple of 320Ki.
	// Supports human-readable formats: "3200Ki", "6400Ki"
	// Default: 3200Ki
	PartSize bytesize.ByteSize `mapstructure:"part_size" yaml:"part_size,omitempty"`

	// Workers bounds the number of concurrent transfers.
	// Default: 5
	Workers int `mapstructure:"workers" validate:"omitempty,min=1,max=64" yaml:"workers"`

	// RetryMax is how many times a failed part upload is retried before
	// the task fails.
	// Default: 5
	RetryMax int `mapstructure:"retry_max" validate:"omitempty,min=1" yaml:"retry_max"`

	// RetrySleep is the pause between part retries.
	// Default: 1s
	RetrySleep time.Duration `mapstructure:"retry_sleep" yaml:"retry_sleep"`
}

// PacerConfig tunes outbound message pacing. After servicing one message
// per chat the pacer sleeps a uniformly random duration in
// [MinDelay, MaxDelay) before the next sweep. The default window
// approximates one message per three seconds per chat, which stays under
// the platform's burst limits.
type PacerConfig struct {
	// MinDelay is the lower bound of the pacing sleep (inclusive).
	// Default: 2700ms
	MinDelay time.Duration `mapstructure:"min_delay" yaml:"min_delay"`

	// MaxDelay is the upper bound of the pacing sleep (exclusive).
	// Default: 3500ms
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// ProgressConfig tunes the live progress aggregator.
type ProgressConfig struct {
	// Tick is the interval between progress snapshots. Values between 2s
	// and 5s keep the live message fresh without flooding the pacer.
	// Default: 3s
	Tick time.Duration `mapstructure:"tick" yaml:"tick"`
}

// flagKeys maps the start command's credential flags to their config
// keys. Kept next to the mapstructure tags so the two name sets stay in
// one file.
var flagKeys = map[string]string{
	"tg-api-id":        "telegram.api_id",
	"tg-api-hash":      "telegram.api_hash",
	"tg-bot-token":     "telegram.bot_token",
	"tg-user-phone":    "telegram.user.phone",
	"tg-user-password": "telegram.user.password",
	"tg-user-name":     "telegram.user.name",
	"od-client-id":     "drive.client_id",
	"od-client-secret": "drive.client_secret",
	"od-root-path":     "drive.root_path",
	"server-url":       "server.url",
	"auto-delete":      "auto_delete",
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TELEBRIDGE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	return LoadWithFlags(configPath, nil)
}

// LoadWithFlags loads configuration with an optional CLI flag set bound
// on top. Bound flags take precedence over environment variables and
// the file. A missing config file is fine: the bridge can run on flags
// and environment alone.
func LoadWithFlags(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	// Read configuration file if it exists
	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// bindFlags binds the recognized credential flags into viper. Flags the
// set does not define are skipped.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: User-friendly error with instructions if config not found
func MustLoad(configPath string) (*Config, error) {
	// Determine config path
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  telebridge init\n\n"+
				"Or specify a custom config file:\n"+
				"  telebridge <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  telebridge init --config %s",
				configPath, configPath)
		}
	}

	// Load configuration
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file with restricted permissions (0600 = owner read/write only).
	// This is important because config files contain bot tokens, OAuth
	// secrets, and the user account's password.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use TELEBRIDGE_ prefix and underscores
	// Example: TELEBRIDGE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("TELEBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/telebridge/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml") // Primary format
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Other errors are problems
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts strings
// and integers to bytesize.ByteSize. This enables config files to use human-readable
// sizes like "3200Ki", "500Mi", "100MB", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to ByteSize
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse human-readable string like "3200Ki", "500Mi", "100MB"
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "2700ms".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to time.Duration
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse duration string like "30s", "5m", "2700ms"
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "telebridge")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "telebridge")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
