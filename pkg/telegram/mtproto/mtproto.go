// Package mtproto implements the user-identity transport over MTProto.
// The user account covers what the bot identity cannot do: reading and
// forwarding messages from arbitrary chats, downloading media, wiping
// chat history, and observing message deletions.
//
// The connection is driven by Run; every other method blocks until the
// connection is up. Login state persists in a session file, so the
// interactive flow only runs when the account was never authorized on
// this install.
package mtproto

import (
	"context"
	"sync"

	"github.com/gotd/td/session"
	td "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/pkg/authserver"
	"github.com/marmos91/telebridge/pkg/telegram"
)

// CodeSource delivers the confirmation code the operator types on the
// callback page during login.
type CodeSource interface {
	AwaitCode(ctx context.Context, provider authserver.Provider) (string, error)
}

// Config tunes the user client.
type Config struct {
	// APIID and APIHash identify the application to the MTProto API.
	APIID   int
	APIHash string

	// Phone is the account's phone number in international format.
	Phone string

	// Password is the account's 2FA password. Empty when the account
	// has none.
	Password string

	// SessionFile is where the authorization key is persisted.
	SessionFile string
}

// Client speaks MTProto with the operator's user account.
type Client struct {
	config Config
	codes  CodeSource

	client *td.Client
	api    *tg.Client

	// ready is closed once Run has brought the connection up.
	ready chan struct{}

	mu        sync.RWMutex
	peers     map[int64]telegram.Peer
	onDeleted func(ctx context.Context, chatID int64, messageIDs []int)
}

var _ telegram.UserClient = (*Client)(nil)

// New creates the client. Nothing connects until Run.
func New(config Config, codes CodeSource) *Client {
	c := &Client{
		config: config,
		codes:  codes,
		ready:  make(chan struct{}),
		peers:  make(map[int64]telegram.Peer),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnDeleteMessages(func(ctx context.Context, _ tg.Entities, u *tg.UpdateDeleteMessages) error {
		// Deletions in private chats and small groups arrive without a
		// peer; the zero chat id tells downstream to match any chat.
		c.dispatchDeleted(ctx, 0, u.Messages)
		return nil
	})
	dispatcher.OnDeleteChannelMessages(func(ctx context.Context, _ tg.Entities, u *tg.UpdateDeleteChannelMessages) error {
		c.dispatchDeleted(ctx, u.ChannelID, u.Messages)
		return nil
	})

	c.client = td.NewClient(config.APIID, config.APIHash, td.Options{
		SessionStorage: &session.FileStorage{Path: config.SessionFile},
		UpdateHandler:  dispatcher,
	})
	c.api = c.client.API()

	return c
}

// OnDeleted registers the deleted-message handler.
func (c *Client) OnDeleted(fn func(ctx context.Context, chatID int64, messageIDs []int)) {
	c.mu.Lock()
	c.onDeleted = fn
	c.mu.Unlock()
}

func (c *Client) dispatchDeleted(ctx context.Context, chatID int64, messageIDs []int) {
	c.mu.RLock()
	fn := c.onDeleted
	c.mu.RUnlock()

	if fn != nil {
		fn(ctx, chatID, messageIDs)
	}
}

// Run connects and drives the client until the context is cancelled.
func (c *Client) Run(ctx context.Context) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		logger.Info("User client connected")
		close(c.ready)
		<-ctx.Done()
		return ctx.Err()
	})
}

// wait blocks until the connection is up. Command handlers start
// calling before Run has finished connecting.
func (c *Client) wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Authorized reports whether the session file holds a live login.
func (c *Client) Authorized(ctx context.Context) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, err
	}

	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, apperr.Wrap(apperr.Transport, "failed to check the login status", err)
	}
	return status.Authorized, nil
}

// Authorize runs the interactive login flow. The confirmation code is
// whatever the operator posts on the callback page.
func (c *Client) Authorize(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	flow := auth.NewFlow(
		auth.Constant(c.config.Phone, c.config.Password, auth.CodeAuthenticatorFunc(c.awaitCode)),
		auth.SendCodeOptions{},
	)
	if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
		return apperr.Wrap(apperr.Authorization, "login flow failed", err)
	}

	logger.Info("User client authorized", "phone", c.config.Phone)
	return nil
}

func (c *Client) awaitCode(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	logger.Info("Waiting for the confirmation code on the callback page")
	return c.codes.AwaitCode(ctx, authserver.ProviderTelegram)
}
