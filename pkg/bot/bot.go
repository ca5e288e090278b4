// Package bot is the command layer. It receives chat updates from the
// bot transport, checks senders against the allow list, runs each
// command's guard chain, and fills task rows for the transfer pipeline.
//
// Dispatch is a registration-ordered prefix match over the message
// text; the first matching command wins. Messages that match no
// command are treated as transfer triggers: an attachment queues a
// file task, a t.me message link queues a link task, and a bare
// http(s) URL queues a URL task.
package bot

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/pkg/authserver"
	"github.com/marmos91/telebridge/pkg/onedrive"
	"github.com/marmos91/telebridge/pkg/scheduler"
	"github.com/marmos91/telebridge/pkg/session"
	"github.com/marmos91/telebridge/pkg/store"
	"github.com/marmos91/telebridge/pkg/telegram"
)

const (
	// defaultLoginTimeout bounds one interactive login round trip.
	defaultLoginTimeout = 5 * time.Minute

	// maxBulkLinks caps the range size of one /links command. The whole
	// range is forwarded into the chat before the first byte moves, so
	// unbounded ranges would flood both the chat and the task queue.
	maxBulkLinks = 50

	// keepMessageID is the one message /clear leaves in place. Message
	// id 1 is the chat's service message and cannot be deleted anyway.
	keepMessageID = 1
)

// Drive is the drive-client surface the command layer needs. The
// transfer pipeline holds the full client; commands only authenticate
// accounts and open upload sessions.
type Drive interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*onedrive.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*onedrive.Token, error)
	Me(ctx context.Context, accessToken string) (*onedrive.Profile, error)
	CreateUploadSession(ctx context.Context, accessToken, destPath string) (*onedrive.UploadSession, error)
}

// AuthServer is the login callback surface the interactive flows drive.
type AuthServer interface {
	Spawn(ctx context.Context) (AuthHandle, error)
	ExpectState(state string)
	Subscribe(provider authserver.Provider) <-chan string
	Unsubscribe(provider authserver.Provider)
}

// AuthHandle scopes one spawned callback listener.
type AuthHandle interface {
	Addr() string
	Release()
}

// NewAuthServer adapts the concrete callback server to the AuthServer
// surface.
func NewAuthServer(server *authserver.Server) AuthServer {
	return authAdapter{server: server}
}

type authAdapter struct {
	server *authserver.Server
}

func (a authAdapter) Spawn(ctx context.Context) (AuthHandle, error) {
	handle, err := a.server.Spawn(ctx)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (a authAdapter) ExpectState(state string) { a.server.ExpectState(state) }

func (a authAdapter) Subscribe(provider authserver.Provider) <-chan string {
	return a.server.Subscribe(provider)
}

func (a authAdapter) Unsubscribe(provider authserver.Provider) {
	a.server.Unsubscribe(provider)
}

// Config tunes the command layer.
type Config struct {
	// AllowedUsers lists the usernames the bot answers to. Messages
	// from anyone else are rejected with a reply.
	AllowedUsers []string

	// ServerURL is the public address of the login callback server,
	// shown in chat during the telegram login.
	ServerURL string

	// DefaultRootPath is the upload folder of fresh drive logins and
	// the target of /dir reset.
	DefaultRootPath string

	// Version is what /version reports.
	Version string

	// AutoDelete is the initial state of the auto-delete toggle.
	AutoDelete bool

	// LoginTimeout bounds one interactive login flow.
	LoginTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = defaultLoginTimeout
	}
}

// Deps are the collaborators the command layer drives.
type Deps struct {
	Store    *store.Store
	Sessions *session.Store
	Drive    Drive
	Aborters *scheduler.Aborters
	Auth     AuthServer

	// Client is the raw bot transport: the update loop and document
	// uploads.
	Client telegram.BotClient

	// User is the raw user transport: history reads, forwards, media,
	// and bulk deletion.
	User telegram.UserClient

	// Out is the paced bot identity every chat reply goes through.
	Out telegram.Sender

	// URLs is the HTTP client /url probes run on, shared with the
	// download pipeline so both see the same transport behavior.
	URLs *http.Client
}

type handler func(ctx context.Context, msg *telegram.Message, args []string) error

// guard short-circuits a command before its handler runs. Login guards
// run the interactive flow instead of failing.
type guard func(ctx context.Context, msg *telegram.Message) error

type command struct {
	prefix string
	guards []guard
	run    handler
}

// Bot is the command layer.
type Bot struct {
	store    *store.Store
	sessions *session.Store
	drive    Drive
	aborters *scheduler.Aborters
	auth     AuthServer
	client   telegram.BotClient
	user     telegram.UserClient
	out      telegram.Sender
	urls     *http.Client
	config   Config

	autoDelete atomic.Bool
	commands   []command
	wg         sync.WaitGroup
}

// New builds the command layer and registers the command table.
func New(deps Deps, config Config) *Bot {
	config.applyDefaults()

	b := &Bot{
		store:    deps.Store,
		sessions: deps.Sessions,
		drive:    deps.Drive,
		aborters: deps.Aborters,
		auth:     deps.Auth,
		client:   deps.Client,
		user:     deps.User,
		out:      deps.Out,
		urls:     deps.URLs,
		config:   config,
	}
	b.autoDelete.Store(config.AutoDelete)

	transferGuards := []guard{b.guardTelegramLogin, b.guardDriveLogin}
	b.commands = []command{
		{prefix: "/start", run: b.handleHelp},
		{prefix: "/help", run: b.handleHelp},
		{prefix: "/auth", run: b.handleAuth},
		{prefix: "/clear", guards: []guard{b.guardTelegramLogin}, run: b.handleClear},
		{prefix: "/autoDelete", run: b.handleAutoDelete},
		{prefix: "/logs", run: b.handleLogs},
		{prefix: "/drive", run: b.handleDrive},
		{prefix: "/dir", guards: []guard{b.guardDriveLogin}, run: b.handleDir},
		{prefix: "/links", guards: transferGuards, run: b.handleLinks},
		{prefix: "/url", guards: transferGuards, run: b.handleURL},
		{prefix: "/version", run: b.handleVersion},
	}

	return b
}

// Start hooks the update handlers. The transports' Run loops are driven
// by the caller.
func (b *Bot) Start() {
	b.client.OnMessage(b.handleMessage)
	b.user.OnDeleted(b.handleDeleted)

	logger.Info("Command layer ready",
		"allowed_users", strings.Join(b.config.AllowedUsers, ","),
		"auto_delete", b.autoDelete.Load(),
	)
}

// Stop waits for in-flight command handlers, up to timeout.
func (b *Bot) Stop(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("Command handlers did not finish in time", "timeout", timeout)
	}
}

// handleMessage fans each update out to its own goroutine. A slow
// command (interactive login, bulk forward) must not stall the update
// loop behind it.
func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	b.wg.Add(1)
	go b.process(ctx, msg)
}

func (b *Bot) process(ctx context.Context, msg *telegram.Message) {
	defer b.wg.Done()

	ctx = logger.WithContext(ctx, logger.NewLogContext(msg.ChatID, msg.ID))

	if err := b.guardAllowed(ctx, msg); err != nil {
		logger.WarnCtx(ctx, "Rejecting sender",
			"sender_id", msg.SenderID,
			"sender", msg.SenderUsername,
		)
		b.replyError(ctx, msg, err)
		return
	}

	if err := b.dispatch(ctx, msg); err != nil {
		logger.ErrorCtx(ctx, "Command failed", "error", err)
		b.replyError(ctx, msg, err)
	}
}

// dispatch routes one message: slash commands by registration-ordered
// prefix match, then the three trigger shapes.
func (b *Bot) dispatch(ctx context.Context, msg *telegram.Message) error {
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/") {
		for i := range b.commands {
			cmd := &b.commands[i]
			if strings.HasPrefix(text, cmd.prefix) {
				return b.runCommand(ctx, msg, cmd, strings.Fields(text)[1:])
			}
		}
		return apperr.Newf(apperr.NotFound, "unknown command %s, try /help", strings.Fields(text)[0])
	}

	if msg.Media != nil {
		return b.runTrigger(ctx, msg, "file", func(ctx context.Context) error {
			return b.transferMedia(ctx, msg)
		})
	}

	if link, err := telegram.ParseMessageLink(text); err == nil {
		return b.runTrigger(ctx, msg, "link", func(ctx context.Context) error {
			return b.transferLinks(ctx, msg, link, 1)
		})
	}

	if isHTTPURL(text) {
		return b.runTrigger(ctx, msg, "url", func(ctx context.Context) error {
			return b.transferURL(ctx, msg, text)
		})
	}

	logger.DebugCtx(ctx, "Ignoring message with nothing to transfer")
	return nil
}

func (b *Bot) runCommand(ctx context.Context, msg *telegram.Message, cmd *command, args []string) error {
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithCommand(cmd.prefix))
	logger.InfoCtx(ctx, "Handling command", "args", len(args))

	for _, g := range cmd.guards {
		if err := g(ctx, msg); err != nil {
			return err
		}
	}

	return cmd.run(ctx, msg, args)
}

// runTrigger wraps the three non-command transfer shapes in the same
// login guards the explicit transfer commands carry.
func (b *Bot) runTrigger(ctx context.Context, msg *telegram.Message, kind string, run func(ctx context.Context) error) error {
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithCommand(kind))
	logger.InfoCtx(ctx, "Handling transfer trigger")

	for _, g := range []guard{b.guardTelegramLogin, b.guardDriveLogin} {
		if err := g(ctx, msg); err != nil {
			return err
		}
	}

	return run(ctx)
}

// handleDeleted cancels the tasks anchored on deleted messages. The id
// matches either the trigger or the bot's indicator reply.
func (b *Bot) handleDeleted(ctx context.Context, chatID int64, messageIDs []int) {
	for _, id := range messageIDs {
		removed, err := b.store.DeleteByMessage(ctx, chatID, id)
		if err != nil {
			logger.Error("Failed to drop tasks of a deleted message",
				"chat_id", chatID,
				"message_id", id,
				"error", err,
			)
			continue
		}

		aborted := b.aborters.Cancel(chatID, id)
		if aborted || len(removed) > 0 {
			logger.Info("Deleted message cancelled tasks",
				"chat_id", chatID,
				"message_id", id,
				"rows", len(removed),
				"aborted", aborted,
			)
		}
	}
}

func (b *Bot) reply(ctx context.Context, msg *telegram.Message, text string) error {
	_, err := b.out.Reply(ctx, msg.Peer, msg.ID, text)
	return err
}

// replyError surfaces a failure as a single reply line.
func (b *Bot) replyError(ctx context.Context, msg *telegram.Message, err error) {
	if replyErr := b.reply(ctx, msg, err.Error()); replyErr != nil {
		logger.ErrorCtx(ctx, "Failed to surface error in chat", "error", replyErr)
	}
}

// isHTTPURL reports whether text looks like a bare downloadable URL.
// The probe does the authoritative validation.
func isHTTPURL(text string) bool {
	if strings.ContainsAny(text, " \t\n") {
		return false
	}
	parsed, err := url.Parse(text)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
