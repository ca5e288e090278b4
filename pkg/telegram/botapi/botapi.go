// Package botapi implements the bot-identity transport over the HTTP
// bot API. It covers everything the bridge does in the bot's name:
// receiving commands, posting and editing replies, and uploading the
// log archive. Reading other chats and downloading media are user-
// identity operations and live in pkg/telegram/mtproto.
package botapi

import (
	"context"
	"io"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/pkg/telegram"
)

// Config tunes the bot API client.
type Config struct {
	// Token is the bot token issued by BotFather.
	Token string
}

// Client speaks the HTTP bot API with the bot's identity.
type Client struct {
	tg        *bot.Bot
	onMessage func(ctx context.Context, msg *telegram.Message)
}

var _ telegram.BotClient = (*Client)(nil)

// New creates the client. The token is verified with a getMe call, so
// a bad token fails here rather than on the first send.
func New(config Config) (*Client, error) {
	c := &Client{}

	tg, err := bot.New(config.Token, bot.WithDefaultHandler(c.handleUpdate))
	if err != nil {
		return nil, apperr.Wrap(apperr.Transport, "failed to create the bot API client", err)
	}
	c.tg = tg

	return c, nil
}

// OnMessage registers the incoming-message handler.
func (c *Client) OnMessage(fn func(ctx context.Context, msg *telegram.Message)) {
	c.onMessage = fn
}

// Run polls for updates until the context is cancelled.
func (c *Client) Run(ctx context.Context) error {
	logger.Info("Starting bot API update loop")
	c.tg.Start(ctx)
	return ctx.Err()
}

func (c *Client) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || c.onMessage == nil {
		return
	}
	c.onMessage(ctx, fromBotMessage(update.Message))
}

// Send posts a new message to the chat.
func (c *Client) Send(ctx context.Context, peer telegram.Peer, text string) (*telegram.Message, error) {
	sent, err := c.tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    peer.BotChatID(),
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Transport, "failed to send message", err)
	}
	return fromBotMessage(sent), nil
}

// Reply posts a new message replying to replyTo.
func (c *Client) Reply(ctx context.Context, peer telegram.Peer, replyTo int, text string) (*telegram.Message, error) {
	sent, err := c.tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    peer.BotChatID(),
		Text:      text,
		ParseMode: models.ParseModeHTML,
		ReplyParameters: &models.ReplyParameters{
			MessageID:                replyTo,
			AllowSendingWithoutReply: true,
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Transport, "failed to send reply", err)
	}
	return fromBotMessage(sent), nil
}

// Edit replaces the text of an existing message.
func (c *Client) Edit(ctx context.Context, peer telegram.Peer, id int, text string) error {
	_, err := c.tg.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    peer.BotChatID(),
		MessageID: id,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return apperr.Wrapf(apperr.Transport, err, "failed to edit message %d", id)
	}
	return nil
}

// Delete removes messages by id.
func (c *Client) Delete(ctx context.Context, peer telegram.Peer, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := c.tg.DeleteMessages(ctx, &bot.DeleteMessagesParams{
		ChatID:     peer.BotChatID(),
		MessageIDs: ids,
	})
	if err != nil {
		return apperr.Wrap(apperr.Transport, "failed to delete messages", err)
	}
	return nil
}

// SendDocument uploads content into the chat as a document.
func (c *Client) SendDocument(ctx context.Context, peer telegram.Peer, filename string, content io.Reader, caption string) (*telegram.Message, error) {
	sent, err := c.tg.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   peer.BotChatID(),
		Document: &models.InputFileUpload{Filename: filename, Data: content},
		Caption:  caption,
	})
	if err != nil {
		return nil, apperr.Wrapf(apperr.Transport, err, "failed to upload document %s", filename)
	}
	return fromBotMessage(sent), nil
}

// fromBotMessage converts a bot API message into the transport-neutral
// form. Signed chat ids are folded back to bare ids.
func fromBotMessage(m *models.Message) *telegram.Message {
	peer := telegram.PeerFromBotChatID(m.Chat.ID)

	msg := &telegram.Message{
		ID:     m.ID,
		ChatID: peer.ID,
		Peer:   peer,
		Text:   m.Text,
		Media:  mediaInfo(m),
	}
	if msg.Text == "" {
		msg.Text = m.Caption
	}
	if m.From != nil {
		msg.SenderID = m.From.ID
		msg.SenderUsername = m.From.Username
	}

	return msg
}

// mediaInfo extracts the downloadable attachment, if any. Only media
// the user client can re-download counts; stickers and contact cards
// are not transferable payloads.
func mediaInfo(m *models.Message) *telegram.MediaInfo {
	switch {
	case m.Document != nil:
		return &telegram.MediaInfo{Filename: m.Document.FileName, Size: m.Document.FileSize}
	case m.Video != nil:
		return &telegram.MediaInfo{Filename: m.Video.FileName, Size: m.Video.FileSize}
	case m.Audio != nil:
		return &telegram.MediaInfo{Filename: m.Audio.FileName, Size: m.Audio.FileSize}
	case m.Animation != nil:
		return &telegram.MediaInfo{Filename: m.Animation.FileName, Size: m.Animation.FileSize}
	case m.Voice != nil:
		return &telegram.MediaInfo{Size: m.Voice.FileSize}
	case m.VideoNote != nil:
		return &telegram.MediaInfo{Size: int64(m.VideoNote.FileSize)}
	case len(m.Photo) > 0:
		best := m.Photo[0]
		for _, size := range m.Photo[1:] {
			if size.FileSize > best.FileSize {
				best = size
			}
		}
		return &telegram.MediaInfo{Size: int64(best.FileSize)}
	}

	return nil
}
