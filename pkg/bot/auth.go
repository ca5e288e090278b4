package bot

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/pkg/authserver"
	"github.com/marmos91/telebridge/pkg/session"
	"github.com/marmos91/telebridge/pkg/telegram"
)

// handleAuth runs the two logins in sequence, skipping whichever side
// already holds a live session.
func (b *Bot) handleAuth(ctx context.Context, msg *telegram.Message, _ []string) error {
	authorized, err := b.user.Authorized(ctx)
	if err != nil {
		return err
	}
	_, logged := b.sessions.Current()

	if authorized && logged {
		return b.reply(ctx, msg, "Already authorized.")
	}

	if !authorized {
		if err := b.loginTelegram(ctx, msg); err != nil {
			return err
		}
	}
	if !logged {
		if err := b.loginDrive(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// loginTelegram runs the interactive user-identity login. The callback
// server's login page collects the confirmation code Telegram sends and
// hands it to the client's auth flow.
func (b *Bot) loginTelegram(ctx context.Context, msg *telegram.Message) error {
	ctx, cancel := context.WithTimeout(ctx, b.config.LoginTimeout)
	defer cancel()

	handle, err := b.auth.Spawn(ctx)
	if err != nil {
		return err
	}
	defer handle.Release()

	text := fmt.Sprintf("Telegram login: open %s and enter the confirmation code you receive.", b.config.ServerURL)
	if err := b.reply(ctx, msg, text); err != nil {
		return err
	}

	if err := b.user.Authorize(ctx); err != nil {
		return fmt.Errorf("telegram login failed: %w", err)
	}

	logger.InfoCtx(ctx, "Telegram login complete")
	return b.reply(ctx, msg, "Telegram login complete.")
}

// loginDrive runs the OAuth code flow for a drive account and stores
// the resulting session as the active one.
func (b *Bot) loginDrive(ctx context.Context, msg *telegram.Message) error {
	ctx, cancel := context.WithTimeout(ctx, b.config.LoginTimeout)
	defer cancel()

	handle, err := b.auth.Spawn(ctx)
	if err != nil {
		return err
	}
	defer handle.Release()

	state := uuid.NewString()
	b.auth.ExpectState(state)

	// Subscribe before handing out the URL so a fast redirect cannot
	// outrun the waiter.
	codes := b.auth.Subscribe(authserver.ProviderDrive)
	defer b.auth.Unsubscribe(authserver.ProviderDrive)

	if err := b.reply(ctx, msg, "Drive login: open "+b.drive.AuthorizeURL(state)); err != nil {
		return err
	}

	var code string
	select {
	case received, ok := <-codes:
		if !ok {
			return apperr.New(apperr.Internal, "another login replaced the drive code subscription")
		}
		code = received
	case <-ctx.Done():
		return apperr.Wrap(apperr.Authorization, "drive login timed out", ctx.Err())
	}

	token, err := b.drive.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}

	profile, err := b.drive.Me(ctx, token.AccessToken)
	if err != nil {
		return err
	}

	sess := session.Session{
		Username:            profile.Username,
		ExpirationTimestamp: token.ExpiresAt,
		AccessToken:         token.AccessToken,
		RefreshToken:        token.RefreshToken,
		RootPath:            b.rootPathFor(ctx, profile.Username),
	}
	if err := b.sessions.Save(ctx, sess); err != nil {
		return err
	}
	if err := b.sessions.SetCurrentUser(ctx, profile.Username); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "Drive login complete", "username", profile.Username)
	return b.reply(ctx, msg, fmt.Sprintf("Logged in as %s.", profile.Username))
}

// rootPathFor keeps the upload folder of a re-authenticated account
// instead of resetting it to the default.
func (b *Bot) rootPathFor(ctx context.Context, username string) string {
	sessions, err := b.sessions.ListSessions(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to look up previous root path", "error", err)
		return b.config.DefaultRootPath
	}
	for _, sess := range sessions {
		if sess.Username == username {
			return sess.RootPath
		}
	}
	return b.config.DefaultRootPath
}

// accessToken returns a live access token for the current drive
// account, refreshing and persisting the pair when the stored one is
// about to expire.
func (b *Bot) accessToken(ctx context.Context) (string, error) {
	sess, ok := b.sessions.Current()
	if !ok {
		return "", apperr.New(apperr.Authorization, "no drive account is logged in")
	}
	if !b.sessions.IsExpired() {
		return sess.AccessToken, nil
	}

	token, err := b.drive.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh the drive token: %w", err)
	}

	sess.AccessToken = token.AccessToken
	sess.RefreshToken = token.RefreshToken
	sess.ExpirationTimestamp = token.ExpiresAt
	if err := b.sessions.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to persist the refreshed token: %w", err)
	}

	logger.InfoCtx(ctx, "Refreshed drive token", "username", sess.Username, "expires_at", token.ExpiresAt)
	return token.AccessToken, nil
}
