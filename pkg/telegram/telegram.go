// Package telegram defines the transport-neutral chat types the bridge
// core works with: peer addressing tokens, message values, message-link
// parsing, and the client interfaces the feature packages consume.
//
// Two implementations exist: pkg/telegram/botapi speaks the HTTP bot API
// with the bot's identity, pkg/telegram/mtproto speaks MTProto with the
// operator's user account. Most chats must be reachable through both,
// which is why every task row stores one addressing token per identity.
package telegram

import (
	"context"
	"io"
)

// MediaInfo describes a downloadable attachment on a message.
type MediaInfo struct {
	// Filename is the attachment's name as the chat platform reports it.
	// Photos carry no name; callers synthesize one.
	Filename string

	// Size is the attachment's byte length, known a priori.
	Size int64
}

// Message is the transport-independent view of one chat message.
type Message struct {
	// ID is the message id, unique per chat.
	ID int

	// ChatID is the bare numeric chat identifier, the form t.me/c/ links
	// use. Bot API style signed ids are converted on the way in.
	ChatID int64

	// Peer addresses the chat for the identity that saw this message.
	Peer Peer

	// Text is the message text or media caption.
	Text string

	// SenderID and SenderUsername identify the author when known.
	SenderID       int64
	SenderUsername string

	// Media is set when the message carries a downloadable attachment.
	Media *MediaInfo
}

// Sender is the outbound surface the pacer serializes. Both client
// identities implement it. Text is sent verbatim; filenames and error
// chains end up in messages, so no markup mode is safe to assume.
type Sender interface {
	// Send posts a new message to the chat.
	Send(ctx context.Context, peer Peer, text string) (*Message, error)

	// Reply posts a new message replying to replyTo.
	Reply(ctx context.Context, peer Peer, replyTo int, text string) (*Message, error)

	// Edit replaces the text of an existing message.
	Edit(ctx context.Context, peer Peer, id int, text string) error

	// Delete removes messages by id.
	Delete(ctx context.Context, peer Peer, ids ...int) error
}

// BotClient is the bot-identity transport surface.
type BotClient interface {
	Sender

	// SendDocument uploads content into the chat as a document.
	SendDocument(ctx context.Context, peer Peer, filename string, content io.Reader, caption string) (*Message, error)

	// OnMessage registers the incoming-message handler. Must be called
	// before Run.
	OnMessage(fn func(ctx context.Context, msg *Message))

	// Run drives the update loop until the context is cancelled.
	Run(ctx context.Context) error
}

// UserClient is the user-identity transport surface. It exists because
// the bot identity cannot read arbitrary chat history, download media
// from other chats, or edit the operator's own messages.
type UserClient interface {
	Sender

	// Authorized reports whether the stored session holds a live login.
	Authorized(ctx context.Context) (bool, error)

	// Authorize runs the interactive login flow. The confirmation code
	// arrives through the OAuth callback server's /tg route.
	Authorize(ctx context.Context) error

	// ResolvePeer finds the peer token for a bare chat id among the
	// account's dialogs.
	ResolvePeer(ctx context.Context, chatID int64) (Peer, error)

	// ResolveUsername finds the peer token for a public chat username.
	ResolveUsername(ctx context.Context, username string) (Peer, error)

	// GetMessage fetches one message by id.
	GetMessage(ctx context.Context, peer Peer, id int) (*Message, error)

	// Forward copies a message into another chat and returns the copy.
	// Link transfers forward the linked message into the operator's chat
	// so every queued item has its own anchor message there.
	Forward(ctx context.Context, from Peer, to Peer, id int) (*Message, error)

	// LastMessageID returns the id of the newest message in the chat.
	LastMessageID(ctx context.Context, peer Peer) (int, error)

	// OpenMedia opens the attachment of a message for reading, starting
	// at the given byte offset.
	OpenMedia(ctx context.Context, peer Peer, messageID int, offset int64) (io.ReadCloser, error)

	// DeleteAllExcept wipes the chat history except the given message.
	DeleteAllExcept(ctx context.Context, peer Peer, keepID int) error

	// OnDeleted registers the deleted-message handler. Must be called
	// before Run.
	OnDeleted(fn func(ctx context.Context, chatID int64, messageIDs []int))

	// Run drives the client until the context is cancelled.
	Run(ctx context.Context) error
}
