package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/pkg/telegram"
)

// guardAllowed rejects senders outside the allow list. Username
// comparison is case-insensitive; Telegram treats usernames that way.
func (b *Bot) guardAllowed(_ context.Context, msg *telegram.Message) error {
	if msg.SenderUsername != "" {
		for _, allowed := range b.config.AllowedUsers {
			if strings.EqualFold(strings.TrimPrefix(allowed, "@"), msg.SenderUsername) {
				return nil
			}
		}
	}

	sender := msg.SenderUsername
	if sender == "" {
		sender = strconv.FormatInt(msg.SenderID, 10)
	}
	return apperr.Newf(apperr.Authorization, "user %s is not allowed to use this bot", sender)
}

// guardTelegramLogin runs the interactive telegram login when the user
// client holds no live session, so that a command needing the user
// identity never fails on a cold start.
func (b *Bot) guardTelegramLogin(ctx context.Context, msg *telegram.Message) error {
	authorized, err := b.user.Authorized(ctx)
	if err != nil {
		return err
	}
	if authorized {
		return nil
	}
	return b.loginTelegram(ctx, msg)
}

// guardDriveLogin runs the interactive drive login when no drive
// account is active.
func (b *Bot) guardDriveLogin(ctx context.Context, msg *telegram.Message) error {
	if _, ok := b.sessions.Current(); ok {
		return nil
	}
	return b.loginDrive(ctx, msg)
}
