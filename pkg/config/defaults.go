package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyTelegramDefaults(&cfg.Telegram)
	applyDriveDefaults(&cfg.Drive)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyTransferDefaults(&cfg.Transfer)
	applyPacerDefaults(&cfg.Pacer)
	applyProgressDefaults(&cfg.Progress)
	applyShutdownTimeoutDefaults(cfg)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 7
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 50
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)
	// No need to set, zero value is false

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	// Apply profiling defaults
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Enabled defaults to false (opt-in for profiling)
	// No need to set, zero value is false

	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	// Default profile types cover CPU, heap space, and goroutines; the
	// contention profiles are opt-in because their samplers cost a bit.
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_space",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyTelegramDefaults sets Telegram transport defaults.
// Credentials have no defaults; they must come from flags, environment,
// or the config file.
func applyTelegramDefaults(cfg *TelegramConfig) {
	if cfg.SessionDir == "" {
		cfg.SessionDir = "state/telegram"
	}
	// The allow-list defaults to the user identity itself, so a freshly
	// configured bot answers only its owner.
	if len(cfg.AllowedUsers) == 0 && cfg.User.Name != "" {
		cfg.AllowedUsers = []string{cfg.User.Name}
	}
}

// applyDriveDefaults sets drive defaults.
func applyDriveDefaults(cfg *DriveConfig) {
	// Default root path is the drive root
	if cfg.RootPath == "" {
		cfg.RootPath = "/"
	}
}

// applyServerDefaults sets OAuth callback server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.URL == "" {
		cfg.URL = "https://127.0.0.1:8443"
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8443"
	}
	if cfg.CertFile == "" {
		cfg.CertFile = "ssl/server.crt"
	}
	if cfg.KeyFile == "" {
		cfg.KeyFile = "ssl/server.key"
	}
}

// applyStorageDefaults sets storage defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.StateDir == "" {
		cfg.StateDir = "state"
	}
}

// applyTransferDefaults sets transfer pipeline defaults.
func applyTransferDefaults(cfg *TransferConfig) {
	// Default part size is ten upload fragments (3200Ki)
	if cfg.PartSize == 0 {
		cfg.PartSize = 10 * uploadFragment
	}
	if cfg.Workers == 0 {
		cfg.Workers = 5
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = 5
	}
	if cfg.RetrySleep == 0 {
		cfg.RetrySleep = time.Second
	}
}

// applyPacerDefaults sets outbound pacing defaults.
// The window approximates one message per three seconds per chat.
func applyPacerDefaults(cfg *PacerConfig) {
	if cfg.MinDelay == 0 {
		cfg.MinDelay = 2700 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 3500 * time.Millisecond
	}
}

// applyProgressDefaults sets progress aggregator defaults.
func applyProgressDefaults(cfg *ProgressConfig) {
	if cfg.Tick == 0 {
		cfg.Tick = 3 * time.Second
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
