package config

import (
	"strings"
	"testing"
	"time"

	"github.com/marmos91/telebridge/internal/bytesize"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000 // Out of range

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_PartSizeAlignment(t *testing.T) {
	cases := []struct {
		name     string
		partSize bytesize.ByteSize
		valid    bool
	}{
		{"default", 3200 * bytesize.KiB, true},
		{"single fragment", 320 * bytesize.KiB, true},
		{"large", 32 * bytesize.MiB, true},
		{"zero", 0, false},
		{"misaligned", 300 * bytesize.KiB, false},
		{"almost aligned", 3200*bytesize.KiB + 1, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.Transfer.PartSize = tc.partSize

			err := Validate(cfg)
			if tc.valid && err != nil {
				t.Errorf("Expected part size %v to validate, got: %v", tc.partSize, err)
			}
			if !tc.valid {
				if err == nil {
					t.Fatalf("Expected validation error for part size %v", tc.partSize)
				}
				if !strings.Contains(err.Error(), "part_size") {
					t.Errorf("Expected error to name part_size, got: %v", err)
				}
			}
		})
	}
}

func TestValidate_PacerWindow(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Pacer.MinDelay = -time.Second

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for negative min delay")
	}
	if !strings.Contains(err.Error(), "pacer") {
		t.Errorf("Expected error to name the pacer, got: %v", err)
	}

	// The window must be non-empty: [3s, 3s) cannot be sampled.
	cfg = GetDefaultConfig()
	cfg.Pacer.MinDelay = 3 * time.Second
	cfg.Pacer.MaxDelay = 3 * time.Second

	err = Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for empty pacing window")
	}
}

func TestValidate_ProgressTick(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Progress.Tick = -time.Second

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for negative progress tick")
	}
}

func TestValidate_TelemetryEnabledWithoutEndpoint(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for telemetry enabled without endpoint")
	}
	if !strings.Contains(err.Error(), "telemetry") && !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("Expected error about telemetry endpoint, got: %v", err)
	}
}

func TestValidate_TelemetrySampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = "localhost:4317"
	cfg.Telemetry.SampleRate = 1.5 // Out of range (should be 0.0-1.0)

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for sample rate out of range")
	}
}

func TestValidate_RootPath(t *testing.T) {
	cases := []struct {
		name  string
		path  string
		valid bool
	}{
		{"drive root", "/", true},
		{"folder", "/Uploads", true},
		{"nested folder", "/Uploads/2024", true},
		{"relative", "Uploads", false},
		{"empty", "", false},
		{"api prefix", "/drive/root:", false},
		{"under api prefix", "/drive/root:/Uploads", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.Drive.RootPath = tc.path

			err := Validate(cfg)
			if tc.valid && err != nil {
				t.Errorf("Expected root path %q to validate, got: %v", tc.path, err)
			}
			if !tc.valid {
				if err == nil {
					t.Fatalf("Expected validation error for root path %q", tc.path)
				}
				if !strings.Contains(err.Error(), "root path") {
					t.Errorf("Expected error about the root path, got: %v", err)
				}
			}
		})
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	// Test that validation accepts both uppercase and lowercase log levels
	testCases := []string{"info", "INFO", "debug", "DEBUG", "warn", "WARN", "error", "ERROR"}

	for _, level := range testCases {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		err := Validate(cfg)
		if err != nil {
			t.Errorf("Validation failed for level %q: %v", level, err)
		}

		// Validation should NOT normalize - level should remain as-is
		if cfg.Logging.Level != level {
			t.Errorf("Expected level to remain %q after validation, got %q", level, cfg.Logging.Level)
		}
	}

	// Test that normalization happens in ApplyDefaults
	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	ApplyDefaults(cfg)
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected ApplyDefaults to normalize 'info' to 'INFO', got %q", cfg.Logging.Level)
	}
}
