package bot

import (
	"context"
	"fmt"

	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/pkg/telegram"
)

const helpText = `TeleBridge moves files from this chat into your cloud drive.

Send a file to upload it.
Send a t.me message link to upload that message's attachment.
Send a direct http(s) URL to upload the file behind it.

Commands:
/auth - log in to Telegram and the drive
/links $message_link $n - upload $n messages starting at the link
/url $http_url - upload the file behind a URL
/dir - show or change the upload folder
/drive - list and switch drive accounts
/autoDelete - toggle deleting messages after upload
/clear - cancel all tasks and clean this chat
/logs - export the bot logs
/version - show the running version
/help - this message`

func (b *Bot) handleHelp(ctx context.Context, msg *telegram.Message, _ []string) error {
	return b.reply(ctx, msg, helpText)
}

func (b *Bot) handleVersion(ctx context.Context, msg *telegram.Message, _ []string) error {
	return b.reply(ctx, msg, "TeleBridge "+b.config.Version)
}

// handleAutoDelete flips the process-wide auto-delete flag. The flag is
// snapshotted into each task row at insertion, so flipping it never
// changes tasks already queued.
func (b *Bot) handleAutoDelete(ctx context.Context, msg *telegram.Message, _ []string) error {
	for {
		old := b.autoDelete.Load()
		if !b.autoDelete.CompareAndSwap(old, !old) {
			continue
		}

		if old {
			return b.reply(ctx, msg, "Bot won't auto delete message.")
		}
		return b.reply(ctx, msg, "Bot will auto delete message.")
	}
}

// handleClear cancels every queued and running task, then wipes the
// chat history down to the first message.
func (b *Bot) handleClear(ctx context.Context, msg *telegram.Message, _ []string) error {
	b.aborters.CancelAll()

	removed, err := b.store.Clear(ctx)
	if err != nil {
		return err
	}
	logger.InfoCtx(ctx, "Cleared task queue", "rows", len(removed))

	chat, err := b.resolveChat(ctx, msg)
	if err != nil {
		return err
	}
	if err := b.user.DeleteAllExcept(ctx, chat.userPeer, keepMessageID); err != nil {
		return fmt.Errorf("failed to clean the chat: %w", err)
	}

	// The trigger is gone with the rest of the history, so the summary
	// cannot be a reply.
	_, err = b.out.Send(ctx, msg.Peer, fmt.Sprintf("Cancelled %d tasks and cleaned the chat.", len(removed)))
	return err
}
