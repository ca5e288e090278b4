package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/pkg/session"
	"github.com/marmos91/telebridge/pkg/telegram"
)

const driveUsage = `Drive account commands:
/drive - list the logged-in accounts
/drive add - log in another account
/drive $index - switch to the account at $index
/drive logout - log out the current account
/drive logout $index - log out the account at $index`

func (b *Bot) handleDrive(ctx context.Context, msg *telegram.Message, args []string) error {
	if len(args) == 0 {
		return b.listAccounts(ctx, msg)
	}

	switch args[0] {
	case "add":
		return b.loginDrive(ctx, msg)
	case "logout":
		return b.logoutDrive(ctx, msg, args[1:])
	case "help":
		return b.reply(ctx, msg, driveUsage)
	default:
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return apperr.Newf(apperr.Validation, "unknown /drive subcommand %s, see /drive help", args[0])
		}
		return b.switchAccount(ctx, msg, index)
	}
}

func (b *Bot) listAccounts(ctx context.Context, msg *telegram.Message) error {
	sessions, err := b.sessions.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return b.reply(ctx, msg, "No drive accounts. Use /drive add to log in.")
	}

	current, _ := b.sessions.Current()

	var sb strings.Builder
	sb.WriteString("Drive accounts:")
	for i, sess := range sessions {
		fmt.Fprintf(&sb, "\n%d: %s", i, sess.Username)
		if sess.Username == current.Username {
			sb.WriteString(" (current)")
		}
	}
	return b.reply(ctx, msg, sb.String())
}

func (b *Bot) switchAccount(ctx context.Context, msg *telegram.Message, index int) error {
	target, err := b.accountAt(ctx, index)
	if err != nil {
		return err
	}

	sess, err := b.sessions.ChangeAccount(ctx, target.Username)
	if err != nil {
		return err
	}
	return b.reply(ctx, msg, fmt.Sprintf("Switched to %s.", sess.Username))
}

// logoutDrive removes the account at the given index, or the current
// one when no index is passed.
func (b *Bot) logoutDrive(ctx context.Context, msg *telegram.Message, args []string) error {
	username := ""
	if len(args) > 0 {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return apperr.Newf(apperr.Validation, "logout index %s is not a number", args[0])
		}
		target, err := b.accountAt(ctx, index)
		if err != nil {
			return err
		}
		username = target.Username
	}

	if err := b.sessions.RemoveUser(ctx, username); err != nil {
		return err
	}

	if sess, ok := b.sessions.Current(); ok {
		return b.reply(ctx, msg, fmt.Sprintf("Logged out. Current account is now %s.", sess.Username))
	}
	return b.reply(ctx, msg, "Logged out. No drive accounts remain.")
}

// accountAt maps a /drive index to its session. Indexes follow the
// order /drive lists.
func (b *Bot) accountAt(ctx context.Context, index int) (session.Session, error) {
	sessions, err := b.sessions.ListSessions(ctx)
	if err != nil {
		return session.Session{}, err
	}
	if index < 0 || index >= len(sessions) {
		return session.Session{}, apperr.Newf(apperr.NotFound, "no drive account at index %d", index)
	}
	return sessions[index], nil
}
