package bot

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/pkg/logsweep"
	"github.com/marmos91/telebridge/pkg/telegram"
)

const logsUsage = `Log commands:
/logs - export the log directory as a zip
/logs clear - remove rotated log files`

func (b *Bot) handleLogs(ctx context.Context, msg *telegram.Message, args []string) error {
	dir := logger.Dir()
	if dir == "" {
		return apperr.New(apperr.Validation, "file logging is not enabled")
	}

	if len(args) == 0 {
		return b.exportLogs(ctx, msg, dir)
	}

	switch args[0] {
	case "clear":
		removed, err := logsweep.Clear(dir, logger.FilePath())
		if err != nil {
			return fmt.Errorf("failed to clear logs: %w", err)
		}
		return b.reply(ctx, msg, fmt.Sprintf("Removed %d log files.", removed))
	case "help":
		return b.reply(ctx, msg, logsUsage)
	default:
		return apperr.Newf(apperr.Validation, "unknown /logs subcommand %s, see /logs help", args[0])
	}
}

// exportLogs zips the log directory into a temp file and uploads it
// into the chat as a document.
func (b *Bot) exportLogs(ctx context.Context, msg *telegram.Message, dir string) error {
	archive, err := os.CreateTemp("", "telebridge-logs-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create the export file: %w", err)
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()

	if err := logsweep.Archive(dir, archive); err != nil {
		return fmt.Errorf("failed to archive logs: %w", err)
	}
	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind the export file: %w", err)
	}

	name := logsweep.ArchiveName(time.Now())
	if _, err := b.client.SendDocument(ctx, msg.Peer, name, archive, "Log export"); err != nil {
		return fmt.Errorf("failed to upload the log archive: %w", err)
	}

	logger.InfoCtx(ctx, "Exported logs", "archive", name)
	return nil
}
