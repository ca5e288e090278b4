package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/telebridge/internal/cli/prompt"
	"github.com/marmos91/telebridge/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample Telebridge configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/telebridge/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  telebridge init

  # Initialize with custom path
  telebridge init --config /etc/telebridge/config.yaml

  # Force overwrite existing config
  telebridge init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		// Use custom path
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		// Use default path
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)

	fill, err := prompt.Confirm("Fill in the credentials now", true)
	if err != nil {
		if prompt.IsAborted(err) {
			printNextSteps(configPath)
			return nil
		}
		return err
	}

	if fill {
		if err := promptCredentials(configPath); err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("\nAborted. Edit the file by hand or rerun telebridge init.")
				return nil
			}
			return err
		}
		fmt.Printf("\nCredentials saved to %s\n", configPath)
		fmt.Println("\nStart the bridge with: telebridge start")
		return nil
	}

	printNextSteps(configPath)
	return nil
}

// promptCredentials walks through the credential fields interactively and
// writes the result back to configPath.
func promptCredentials(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("\nTelegram application (from https://my.telegram.org):")

	cfg.Telegram.APIID, err = prompt.InputInt("API id", cfg.Telegram.APIID)
	if err != nil {
		return err
	}
	cfg.Telegram.APIHash, err = prompt.Input("API hash", cfg.Telegram.APIHash)
	if err != nil {
		return err
	}
	cfg.Telegram.BotToken, err = prompt.Input("Bot token (from @BotFather)", cfg.Telegram.BotToken)
	if err != nil {
		return err
	}

	fmt.Println("\nTelegram user account (reads restricted media):")

	cfg.Telegram.User.Phone, err = prompt.Input("Phone number (international format)", cfg.Telegram.User.Phone)
	if err != nil {
		return err
	}
	cfg.Telegram.User.Password, err = prompt.Password("Two-step verification password (empty if none)")
	if err != nil {
		return err
	}
	cfg.Telegram.User.Name, err = prompt.Input("Username (without @)", cfg.Telegram.User.Name)
	if err != nil {
		return err
	}

	fmt.Println("\nOneDrive OAuth application (from the Azure portal):")

	cfg.Drive.ClientID, err = prompt.Input("Client id", cfg.Drive.ClientID)
	if err != nil {
		return err
	}
	cfg.Drive.ClientSecret, err = prompt.Password("Client secret")
	if err != nil {
		return err
	}
	cfg.Drive.RootPath, err = prompt.Input("Default upload folder", cfg.Drive.RootPath)
	if err != nil {
		return err
	}

	fmt.Println("\nCallback server:")

	cfg.Server.URL, err = prompt.Input("Public URL (OAuth redirects land here)", cfg.Server.URL)
	if err != nil {
		return err
	}

	return config.SaveConfig(cfg, configPath)
}

func printNextSteps(configPath string) {
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file and fill in the credentials")
	fmt.Println("  2. Start the bridge with: telebridge start")
	fmt.Printf("  3. Or specify custom config: telebridge start --config %s\n", configPath)
}
