package commands

import (
	"fmt"
	"strings"

	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		MaxAge:  cfg.Logging.MaxAge,
		MaxSize: cfg.Logging.MaxSize,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// checkCredentials verifies the credentials the bridge cannot run
// without and names the missing flags, which reads better than a
// validation error pointing at a struct field.
func checkCredentials(cfg *config.Config) error {
	var missing []string
	if cfg.Telegram.APIID == 0 {
		missing = append(missing, "--tg-api-id")
	}
	if cfg.Telegram.APIHash == "" {
		missing = append(missing, "--tg-api-hash")
	}
	if cfg.Telegram.BotToken == "" {
		missing = append(missing, "--tg-bot-token")
	}
	if cfg.Telegram.User.Phone == "" {
		missing = append(missing, "--tg-user-phone")
	}
	if cfg.Drive.ClientID == "" {
		missing = append(missing, "--od-client-id")
	}
	if cfg.Drive.ClientSecret == "" {
		missing = append(missing, "--od-client-secret")
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing credentials: %s\n\nProvide them as flags, TELEBRIDGE_* environment variables, or in the config file (telebridge init)",
		strings.Join(missing, ", "))
}
