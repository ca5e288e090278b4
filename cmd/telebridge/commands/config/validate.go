package config

import (
	"fmt"
	"os"

	"github.com/marmos91/telebridge/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the telebridge configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  telebridge config validate

  # Validate specific config file
  telebridge config validate --config /etc/telebridge/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	if cfg.Telegram.APIID == 0 || cfg.Telegram.APIHash == "" {
		warnings = append(warnings, "Telegram API credentials not configured - 'telebridge start' will refuse to run")
	}
	if cfg.Telegram.BotToken == "" {
		warnings = append(warnings, "Bot token not configured - 'telebridge start' will refuse to run")
	}
	if cfg.Telegram.User.Phone == "" {
		warnings = append(warnings, "User account phone not configured - restricted media cannot be read")
	}
	if cfg.Telegram.User.Password == "" {
		warnings = append(warnings, "Two-step verification password not set - login will fail if the account uses one")
	}
	if cfg.Drive.ClientID == "" || cfg.Drive.ClientSecret == "" {
		warnings = append(warnings, "Drive OAuth client not configured - 'telebridge start' will refuse to run")
	}
	if len(cfg.Telegram.AllowedUsers) == 0 {
		warnings = append(warnings, "No allowed users configured - the bot will refuse every chat")
	}
	if _, err := os.Stat(cfg.Server.CertFile); err != nil {
		warnings = append(warnings, fmt.Sprintf("TLS certificate %s not found - a self-signed certificate will be generated", cfg.Server.CertFile))
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  State dir:   %s\n", cfg.Storage.StateDir)
	fmt.Printf("  Part size:   %s\n", cfg.Transfer.PartSize)
	fmt.Printf("  Workers:     %d\n", cfg.Transfer.Workers)
	fmt.Printf("  Log level:   %s\n", cfg.Logging.Level)

	return nil
}
