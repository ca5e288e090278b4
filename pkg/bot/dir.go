package bot

import (
	"context"
	"fmt"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/pkg/telegram"
)

const dirUsage = `Upload folder commands:
/dir - show the current upload folder
/dir $path - set the upload folder
/dir reset - go back to the default folder
/dir temp $path - use $path for the next transfer only
/dir temp cancel - drop the pending temporary folder`

func (b *Bot) handleDir(ctx context.Context, msg *telegram.Message, args []string) error {
	if len(args) == 0 {
		return b.showDir(ctx, msg)
	}

	switch args[0] {
	case "reset":
		if err := b.sessions.SetRootPath(ctx, b.config.DefaultRootPath); err != nil {
			return err
		}
		return b.reply(ctx, msg, fmt.Sprintf("Directory reset to %s.", b.config.DefaultRootPath))

	case "temp":
		return b.handleDirTemp(ctx, msg, args[1:])

	case "help":
		return b.reply(ctx, msg, dirUsage)

	default:
		if err := b.sessions.SetRootPath(ctx, args[0]); err != nil {
			return err
		}
		return b.reply(ctx, msg, fmt.Sprintf("Directory set to %s.", args[0]))
	}
}

func (b *Bot) showDir(ctx context.Context, msg *telegram.Message) error {
	sess, ok := b.sessions.Current()
	if !ok {
		return apperr.New(apperr.Authorization, "no drive account is logged in")
	}

	if temp, set := b.sessions.TempRoot(); set {
		return b.reply(ctx, msg, fmt.Sprintf("Directory: %s\nNext transfer goes to %s.", sess.RootPath, temp))
	}
	return b.reply(ctx, msg, "Directory: "+sess.RootPath)
}

func (b *Bot) handleDirTemp(ctx context.Context, msg *telegram.Message, args []string) error {
	if len(args) != 1 {
		return apperr.New(apperr.Validation, "usage: /dir temp $path or /dir temp cancel")
	}

	if args[0] == "cancel" {
		b.sessions.ClearTempRoot()
		return b.reply(ctx, msg, "Temporary directory cancelled.")
	}

	if err := b.sessions.SetTempRoot(args[0]); err != nil {
		return err
	}
	return b.reply(ctx, msg, fmt.Sprintf("Next transfer goes to %s.", args[0]))
}
