package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/telebridge/internal/cli/output"
	"github.com/marmos91/telebridge/internal/cli/timeutil"
	"github.com/marmos91/telebridge/pkg/config"
	"github.com/marmos91/telebridge/pkg/session"
)

var sessionsOutput string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the logged-in drive accounts",
	Long: `List the OneDrive accounts stored in the session database, their upload
folders, and when each access token expires. The active account is
marked with an asterisk.

Accounts are added at runtime with the bot's /drive add command.`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVarP(&sessionsOutput, "output", "o", "table", "Output format (table, json, yaml)")
}

// sessionRow is the listing shape. Tokens deliberately stay out of it:
// the command prints to stdout and stdout ends up in shell histories
// and pasted terminal output.
type sessionRow struct {
	Username  string    `json:"username" yaml:"username"`
	Folder    string    `json:"folder" yaml:"folder"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
	Active    bool      `json:"active" yaml:"active"`
}

func runSessions(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(sessionsOutput)
	if err != nil {
		return err
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sessions, err := session.New(&session.Config{
		Path: filepath.Join(cfg.Storage.StateDir, "sessions.db"),
	})
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()

	list, err := sessions.ListSessions(cmd.Context())
	if err != nil {
		return err
	}

	active, hasActive := sessions.Current()

	rows := make([]sessionRow, 0, len(list))
	for _, s := range list {
		rows = append(rows, sessionRow{
			Username:  s.Username,
			Folder:    s.RootPath,
			ExpiresAt: s.ExpirationTimestamp,
			Active:    hasActive && s.Username == active.Username,
		})
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, rows)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, rows)
	}

	if len(rows) == 0 {
		fmt.Println("No drive accounts. Start the bridge and use /drive add to log in.")
		return nil
	}

	table := output.NewTableData("", "USERNAME", "FOLDER", "TOKEN EXPIRES")
	now := time.Now()
	for _, row := range rows {
		marker := ""
		if row.Active {
			marker = "*"
		}
		table.AddRow(marker, row.Username, row.Folder, timeutil.FormatExpiry(row.ExpiresAt, now))
	}

	return output.PrintTable(os.Stdout, table)
}
