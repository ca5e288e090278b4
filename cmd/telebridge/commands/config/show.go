package config

import (
	"os"

	"github.com/marmos91/telebridge/internal/cli/output"
	"github.com/marmos91/telebridge/pkg/config"
	"github.com/spf13/cobra"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective telebridge configuration.

The output reflects the merged result of the config file, TELEBRIDGE_*
environment variables, and defaults. Credential values are masked.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show default config as YAML
  telebridge config show

  # Show as JSON
  telebridge config show --output json

  # Show specific config file
  telebridge config show --config /etc/telebridge/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	masked := redacted(cfg)

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, masked)
	default:
		return output.PrintYAML(os.Stdout, masked)
	}
}

// redacted returns a copy of the configuration with credential fields
// masked, so show output is safe to paste into an issue or a chat.
func redacted(cfg *config.Config) *config.Config {
	c := *cfg
	c.Telegram.APIHash = mask(c.Telegram.APIHash)
	c.Telegram.BotToken = mask(c.Telegram.BotToken)
	c.Telegram.User.Password = mask(c.Telegram.User.Password)
	c.Drive.ClientSecret = mask(c.Drive.ClientSecret)
	return &c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "<redacted>"
}
