package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/marmos91/telebridge/internal/bytesize"
)

func TestLoad_DefaultConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Write minimal config
	configContent := `
logging:
  level: "INFO"

telegram:
  api_id: 12345
  api_hash: "abcdef"
  bot_token: "123:token"
  user:
    phone: "+15550000000"
    name: "somebody"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Load config
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Transfer.Workers != 5 {
		t.Errorf("Expected default worker count 5, got %d", cfg.Transfer.Workers)
	}
	if cfg.Transfer.PartSize != 3200*bytesize.KiB {
		t.Errorf("Expected default part size 3200Ki, got %v", cfg.Transfer.PartSize)
	}
	if len(cfg.Telegram.AllowedUsers) != 1 || cfg.Telegram.AllowedUsers[0] != "somebody" {
		t.Errorf("Expected allow-list to default to the user name, got %v", cfg.Telegram.AllowedUsers)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	// This allows flag and environment driven setups without a file.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}

	// Verify default config is returned
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}

	// Verify default pacing window
	if cfg.Pacer.MinDelay != 2700*time.Millisecond {
		t.Errorf("Expected default pacer min delay 2700ms, got %v", cfg.Pacer.MinDelay)
	}
}

func TestLoadWithFlags(t *testing.T) {
	// Flags override the file-less defaults, so a config file is not
	// required when credentials arrive on the command line.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	flags := pflag.NewFlagSet("start", pflag.ContinueOnError)
	flags.Int("tg-api-id", 0, "")
	flags.String("od-root-path", "", "")
	flags.Bool("auto-delete", false, "")
	args := []string{"--tg-api-id=12345", "--od-root-path=/Inbox", "--auto-delete"}
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := LoadWithFlags(nonExistentPath, flags)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Telegram.APIID != 12345 {
		t.Errorf("Expected API id from flag, got %d", cfg.Telegram.APIID)
	}
	if cfg.Drive.RootPath != "/Inbox" {
		t.Errorf("Expected root path from flag, got %q", cfg.Drive.RootPath)
	}
	if !cfg.AutoDelete {
		t.Error("Expected auto-delete from flag")
	}

	// Unset flags fall through to defaults
	if cfg.Server.URL != "https://127.0.0.1:8443" {
		t.Errorf("Expected default server URL, got %q", cfg.Server.URL)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	// Write invalid YAML
	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Should return error
	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[transfer]
part_size = "6400Ki"
workers = 3

[pacer]
min_delay = "2s"
max_delay = "4s"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Transfer.PartSize != 6400*bytesize.KiB {
		t.Errorf("Expected part size 6400Ki, got %v", cfg.Transfer.PartSize)
	}
	if cfg.Pacer.MaxDelay != 4*time.Second {
		t.Errorf("Expected pacer max delay 4s, got %v", cfg.Pacer.MaxDelay)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	// Verify all defaults are set
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Drive.RootPath != "/" {
		t.Errorf("Expected default root path '/', got %q", cfg.Drive.RootPath)
	}
	if cfg.Server.Listen != ":8443" {
		t.Errorf("Expected default listen address ':8443', got %q", cfg.Server.Listen)
	}
	if cfg.Progress.Tick != 3*time.Second {
		t.Errorf("Expected default progress tick 3s, got %v", cfg.Progress.Tick)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	// Should contain telebridge and config.yaml
	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	// Should contain telebridge
	if filepath.Base(dir) != "telebridge" {
		t.Errorf("Expected directory name 'telebridge', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// Set environment variables
	_ = os.Setenv("TELEBRIDGE_LOGGING_LEVEL", "ERROR")
	_ = os.Setenv("TELEBRIDGE_TRANSFER_WORKERS", "9")
	defer func() {
		_ = os.Unsetenv("TELEBRIDGE_LOGGING_LEVEL")
		_ = os.Unsetenv("TELEBRIDGE_TRANSFER_WORKERS")
	}()

	// Create minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

transfer:
  workers: 5
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify environment variables override config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Transfer.Workers != 9 {
		t.Errorf("Expected 9 workers from env var, got %d", cfg.Transfer.Workers)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "saved", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Logging.Level = "DEBUG"
	cfg.Telegram.AllowedUsers = []string{"somebody", "other"}

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	// Saved file should be private: it can carry credentials.
	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Failed to stat saved config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected permissions 0600, got %v", info.Mode().Perm())
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Logging.Level != "DEBUG" {
		t.Errorf("Expected level 'DEBUG' after round trip, got %q", loaded.Logging.Level)
	}
	if len(loaded.Telegram.AllowedUsers) != 2 {
		t.Errorf("Expected allow-list to survive round trip, got %v", loaded.Telegram.AllowedUsers)
	}
	if loaded.Transfer.PartSize != cfg.Transfer.PartSize {
		t.Errorf("Expected part size %v after round trip, got %v", cfg.Transfer.PartSize, loaded.Transfer.PartSize)
	}
}
