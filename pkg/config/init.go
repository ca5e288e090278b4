package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultConfigTemplate is the commented starter configuration written by
// 'telebridge init'. Values match GetDefaultConfig so the generated file
// loads and validates as-is; credentials are left empty for the operator
// to fill in.
const defaultConfigTemplate = `# Telebridge Configuration File
#
# Generated by 'telebridge init'. Every value can be overridden with a
# TELEBRIDGE_* environment variable, e.g. TELEBRIDGE_LOGGING_LEVEL=DEBUG
# or TELEBRIDGE_TRANSFER_WORKERS=10.

# Telegram application credentials.
# api_id and api_hash come from https://my.telegram.org; bot_token from
# @BotFather. The user account is what downloads restricted media the bot
# itself cannot see.
telegram:
  api_id: 0
  api_hash: ""
  bot_token: ""
  user:
    phone: ""
    password: ""
    name: ""
  session_dir: "state/telegram"
  # allowed_users defaults to the user account's own username.
  # allowed_users:
  #   - "somebody"

# OneDrive OAuth application (from the Azure portal).
drive:
  client_id: ""
  client_secret: ""
  root_path: "/"

# HTTPS callback server that receives the OAuth redirects. url is the
# public base the providers redirect back to; the drive redirect URI is
# url + "/auth". A self-signed certificate is generated when the PEM pair
# is missing.
server:
  url: "https://127.0.0.1:8443"
  listen: ":8443"
  cert_file: "ssl/server.crt"
  key_file: "ssl/server.key"

# On-disk state. The task queue database inside is truncated on every
# start; the drive session database is kept. Set resume to true to keep
# queued tasks across quick restarts instead.
storage:
  state_dir: "state"
  resume: false

# Upload pipeline tuning. part_size must be a positive multiple of 320Ki.
transfer:
  part_size: 3200Ki
  workers: 5
  retry_max: 5
  retry_sleep: 1s

# Outbound message pacing window: after each serviced message the pacer
# sleeps a random duration in [min_delay, max_delay).
pacer:
  min_delay: 2700ms
  max_delay: 3500ms

# Live progress reporting interval.
progress:
  tick: 3s

logging:
  level: "INFO"
  format: "text"
  output: "stdout"
  max_age: 7
  max_size: 50

telemetry:
  enabled: false
  endpoint: "localhost:4317"

metrics:
  enabled: false
  port: 9090

# Delete the triggering message after a successful upload instead of
# editing the result into it. /autoDelete toggles this at runtime.
auto_delete: false

shutdown_timeout: 30s
`

// InitConfig writes the starter configuration file to the default
// location and returns its path. Refuses to overwrite an existing file
// unless force is set.
func InitConfig(force bool) (string, error) {
	return initConfigAt(GetDefaultConfigPath(), force)
}

// InitConfigToPath writes the starter configuration file to an explicit path.
func InitConfigToPath(path string, force bool) error {
	_, err := initConfigAt(path, force)
	return err
}

func initConfigAt(path string, force bool) (string, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file will hold bot tokens and OAuth secrets once filled in.
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}
