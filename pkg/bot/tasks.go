package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/pkg/store"
	"github.com/marmos91/telebridge/pkg/telegram"
	"github.com/marmos91/telebridge/pkg/transfer"
)

// chatRef carries the per-identity addressing of the chat a command
// came from, resolved once per command.
type chatRef struct {
	chatID   int64
	botPeer  telegram.Peer
	userPeer telegram.Peer
}

func (b *Bot) resolveChat(ctx context.Context, msg *telegram.Message) (chatRef, error) {
	userPeer, err := b.user.ResolvePeer(ctx, msg.ChatID)
	if err != nil {
		return chatRef{}, fmt.Errorf("failed to resolve chat %d for the user client: %w", msg.ChatID, err)
	}
	return chatRef{chatID: msg.ChatID, botPeer: msg.Peer, userPeer: userPeer}, nil
}

// transferMedia queues the attachment of a message posted directly in
// the chat. The message itself anchors the task.
func (b *Bot) transferMedia(ctx context.Context, msg *telegram.Message) error {
	chat, err := b.resolveChat(ctx, msg)
	if err != nil {
		return err
	}

	if msg.Media.Size <= 0 {
		return apperr.Newf(apperr.Validation, "attachment %s reports no size", msg.Media.Filename)
	}

	task := &store.Task{
		Type:        store.TaskTypeFile,
		Filename:    mediaFilename(msg.Media, msg.ID),
		TotalLength: uint64(msg.Media.Size),
		MessageID:   msg.ID,
	}
	return b.insertTask(ctx, chat, task)
}

func (b *Bot) handleURL(ctx context.Context, msg *telegram.Message, args []string) error {
	if len(args) != 1 {
		return apperr.New(apperr.Validation, "usage: /url $http_url")
	}
	return b.transferURL(ctx, msg, args[0])
}

// transferURL probes the URL for a filename and total size, posts the
// transfer indicator, and queues the task. Sources without a usable
// Content-Length are rejected before anything is queued.
func (b *Bot) transferURL(ctx context.Context, msg *telegram.Message, rawURL string) error {
	chat, err := b.resolveChat(ctx, msg)
	if err != nil {
		return err
	}

	filename, total, err := transfer.Probe(ctx, b.urls, rawURL)
	if err != nil {
		return err
	}

	indicator, err := b.out.Reply(ctx, msg.Peer, msg.ID, fmt.Sprintf("Transferring %s...", filename))
	if err != nil {
		return fmt.Errorf("failed to post the transfer indicator: %w", err)
	}

	task := &store.Task{
		Type:               store.TaskTypeURL,
		Filename:           filename,
		URL:                rawURL,
		TotalLength:        uint64(total),
		MessageID:          msg.ID,
		MessageIndicatorID: indicator.ID,
	}
	if err := b.insertTask(ctx, chat, task); err != nil {
		if delErr := b.out.Delete(ctx, msg.Peer, indicator.ID); delErr != nil {
			logger.WarnCtx(ctx, "Failed to remove the indicator of a rejected task", "error", delErr)
		}
		return err
	}
	return nil
}

func (b *Bot) handleLinks(ctx context.Context, msg *telegram.Message, args []string) error {
	if len(args) != 2 {
		return apperr.New(apperr.Validation, "usage: /links $message_link $count")
	}

	link, err := telegram.ParseMessageLink(args[0])
	if err != nil {
		return err
	}

	count, err := strconv.Atoi(args[1])
	if err != nil || count < 1 || count > maxBulkLinks {
		return apperr.Newf(apperr.Validation, "count must be a number between 1 and %d", maxBulkLinks)
	}

	return b.transferLinks(ctx, msg, link, count)
}

// transferLinks queues one task per message id starting at the link.
// Each linked message is forwarded into this chat first; the forwarded
// copy anchors its task, so every task has a message of its own to
// carry progress epilogues and cancellation. A message that cannot be
// queued fails its own slot only.
func (b *Bot) transferLinks(ctx context.Context, msg *telegram.Message, link *telegram.MessageLink, count int) error {
	chat, err := b.resolveChat(ctx, msg)
	if err != nil {
		return err
	}

	origin, err := b.resolveOrigin(ctx, link)
	if err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		id := link.MessageID + i
		if err := b.transferLinked(ctx, chat, origin, id); err != nil {
			logger.WarnCtx(ctx, "Skipping linked message",
				"origin_message_id", id,
				"error", err,
			)
			b.replyError(ctx, msg, linkedError(link, id, err))
		}
	}
	return nil
}

// transferLinked queues one linked message: fetch it from the origin
// chat, forward it here, anchor the task on the forwarded copy.
func (b *Bot) transferLinked(ctx context.Context, chat chatRef, origin telegram.Peer, id int) error {
	src, err := b.user.GetMessage(ctx, origin, id)
	if err != nil {
		return err
	}
	if src.Media == nil || src.Media.Size <= 0 {
		return apperr.New(apperr.Validation, "no downloadable media")
	}

	forwarded, err := b.user.Forward(ctx, origin, chat.userPeer, id)
	if err != nil {
		return fmt.Errorf("failed to forward: %w", err)
	}

	task := &store.Task{
		Type:            store.TaskTypeLink,
		Filename:        mediaFilename(src.Media, id),
		TotalLength:     uint64(src.Media.Size),
		MessageID:       forwarded.ID,
		ChatOriginHex:   origin.Hex(),
		MessageOriginID: id,
	}
	return b.insertTask(ctx, chat, task)
}

func (b *Bot) resolveOrigin(ctx context.Context, link *telegram.MessageLink) (telegram.Peer, error) {
	if link.Username != "" {
		return b.user.ResolveUsername(ctx, link.Username)
	}
	return b.user.ResolvePeer(ctx, link.ChatID)
}

// linkedError renders a per-slot /links failure. Missing messages get
// the canonical one-liner with the message's own link; everything else
// keeps the underlying error.
func linkedError(link *telegram.MessageLink, id int, err error) error {
	if apperr.IsKind(err, apperr.NotFound) {
		return apperr.Newf(apperr.NotFound, "message %s not found", renderLink(link, id))
	}
	if apperr.IsKind(err, apperr.Validation) {
		return apperr.Newf(apperr.Validation, "message %s has %s", renderLink(link, id), err.Error())
	}
	return err
}

// renderLink rebuilds a t.me link for one message id in the linked
// chat.
func renderLink(link *telegram.MessageLink, id int) string {
	if link.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", link.Username, id)
	}
	return fmt.Sprintf("https://t.me/c/%d/%d", link.ChatID, id)
}

// insertTask fills the shared row fields, opens the upload session, and
// registers the cancellation token. The task arrives with its type,
// filename, total size, source reference, and anchor message set.
func (b *Bot) insertTask(ctx context.Context, chat chatRef, task *store.Task) error {
	root, err := b.sessions.RootPath(true)
	if err != nil {
		return err
	}

	token, err := b.accessToken(ctx)
	if err != nil {
		return err
	}

	upload, err := b.drive.CreateUploadSession(ctx, token, drivePath(root, task.Filename))
	if err != nil {
		return fmt.Errorf("failed to open an upload session for %s: %w", task.Filename, err)
	}

	task.RootPath = root
	task.UploadURL = upload.UploadURL
	task.ChatID = chat.chatID
	task.ChatBotHex = chat.botPeer.Hex()
	task.ChatUserHex = chat.userPeer.Hex()
	task.AutoDelete = b.autoDelete.Load()

	id, err := b.store.InsertTask(ctx, task)
	if err != nil {
		return err
	}

	b.aborters.Register(task.ChatID, task.MessageID)
	if task.MessageIndicatorID != 0 {
		b.aborters.SetIndicator(task.ChatID, task.MessageID, task.MessageIndicatorID)
	}

	logger.InfoCtx(ctx, "Task queued",
		"task_id", id,
		"type", task.Type,
		"filename", task.Filename,
		"total_bytes", task.TotalLength,
		"root_path", root,
	)
	return nil
}

// mediaFilename names the attachment; unnamed media (photos) get a
// synthetic name keyed by the message id.
func mediaFilename(media *telegram.MediaInfo, messageID int) string {
	if media.Filename != "" {
		return media.Filename
	}
	return fmt.Sprintf("file_%d", messageID)
}

// drivePath joins the destination folder and the filename.
func drivePath(root, filename string) string {
	if strings.HasSuffix(root, "/") {
		return root + filename
	}
	return root + "/" + filename
}
