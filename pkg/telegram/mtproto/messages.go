package mtproto

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/gotd/td/tg"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/pkg/telegram"
)

// historyPageSize bounds one wipe round. Deletion requests take at most
// a hundred ids per call.
const historyPageSize = 100

func randomID() (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return 0, apperr.Wrap(apperr.Internal, "failed to draw a random message id", err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// Send posts a new message to the chat.
func (c *Client) Send(ctx context.Context, peer telegram.Peer, text string) (*telegram.Message, error) {
	return c.send(ctx, peer, 0, text)
}

// Reply posts a message replying to an existing one.
func (c *Client) Reply(ctx context.Context, peer telegram.Peer, replyTo int, text string) (*telegram.Message, error) {
	return c.send(ctx, peer, replyTo, text)
}

func (c *Client) send(ctx context.Context, peer telegram.Peer, replyTo int, text string) (*telegram.Message, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	rid, err := randomID()
	if err != nil {
		return nil, err
	}

	req := &tg.MessagesSendMessageRequest{
		Peer:     inputPeer(peer),
		Message:  text,
		RandomID: rid,
	}
	if replyTo != 0 {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: replyTo})
	}

	updates, err := c.api.MessagesSendMessage(ctx, req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transport, "failed to send message", err)
	}

	return &telegram.Message{
		ID:     sentMessageID(updates),
		ChatID: peer.ID,
		Peer:   peer,
		Text:   text,
	}, nil
}

// sentMessageID digs the id of the freshly sent message out of the
// updates response. Private chats answer with the short form.
func sentMessageID(u tg.UpdatesClass) int {
	switch v := u.(type) {
	case *tg.UpdateShortSentMessage:
		return v.ID
	case *tg.Updates:
		return messageIDFromUpdates(v.Updates)
	case *tg.UpdatesCombined:
		return messageIDFromUpdates(v.Updates)
	}
	return 0
}

func messageIDFromUpdates(updates []tg.UpdateClass) int {
	for _, u := range updates {
		switch v := u.(type) {
		case *tg.UpdateMessageID:
			return v.ID
		case *tg.UpdateNewMessage:
			if m, ok := v.Message.(*tg.Message); ok {
				return m.ID
			}
		case *tg.UpdateNewChannelMessage:
			if m, ok := v.Message.(*tg.Message); ok {
				return m.ID
			}
		}
	}
	return 0
}

// Edit replaces the text of an existing message.
func (c *Client) Edit(ctx context.Context, peer telegram.Peer, id int, text string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	req := &tg.MessagesEditMessageRequest{Peer: inputPeer(peer), ID: id}
	req.SetMessage(text)

	if _, err := c.api.MessagesEditMessage(ctx, req); err != nil {
		return apperr.Wrapf(apperr.Transport, err, "failed to edit message %d", id)
	}
	return nil
}

// Delete removes messages for every participant.
func (c *Client) Delete(ctx context.Context, peer telegram.Peer, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.wait(ctx); err != nil {
		return err
	}

	if peer.Kind == telegram.PeerChannel {
		_, err := c.api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
			Channel: inputChannel(peer),
			ID:      ids,
		})
		if err != nil {
			return apperr.Wrap(apperr.Transport, "failed to delete channel messages", err)
		}
		return nil
	}

	_, err := c.api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{
		Revoke: true,
		ID:     ids,
	})
	if err != nil {
		return apperr.Wrap(apperr.Transport, "failed to delete messages", err)
	}
	return nil
}

// GetMessage fetches a single message by id.
func (c *Client) GetMessage(ctx context.Context, peer telegram.Peer, id int) (*telegram.Message, error) {
	raw, err := c.fetchMessage(ctx, peer, id)
	if err != nil {
		return nil, err
	}

	msg := &telegram.Message{
		ID:     raw.ID,
		ChatID: peer.ID,
		Peer:   peer,
		Text:   raw.Message,
		Media:  mediaInfo(raw.Media),
	}
	if from, ok := raw.GetFromID(); ok {
		msg.SenderID = peerBareID(from)
	}
	return msg, nil
}

// fetchMessage returns the wire form of a message. Deleted and never
// existing ids both come back as a not-found error.
func (c *Client) fetchMessage(ctx context.Context, peer telegram.Peer, id int) (*tg.Message, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var (
		result tg.MessagesMessagesClass
		err    error
	)
	if peer.Kind == telegram.PeerChannel {
		result, err = c.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: inputChannel(peer),
			ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: id}},
		})
	} else {
		result, err = c.api.MessagesGetMessages(ctx, []tg.InputMessageClass{&tg.InputMessageID{ID: id}})
	}
	if err != nil {
		return nil, apperr.Wrapf(apperr.Transport, err, "failed to fetch message %d", id)
	}

	messages, chats, users, ok := unpackMessages(result)
	if !ok {
		return nil, apperr.New(apperr.Transport, "unexpected response to a message fetch")
	}
	c.cachePeers(chats, users)

	for _, m := range messages {
		if msg, ok := m.(*tg.Message); ok && msg.ID == id {
			return msg, nil
		}
	}
	return nil, apperr.Newf(apperr.NotFound, "message %d not found in chat %d", id, peer.ID)
}

func unpackMessages(result tg.MessagesMessagesClass) (messages []tg.MessageClass, chats []tg.ChatClass, users []tg.UserClass, ok bool) {
	switch v := result.(type) {
	case *tg.MessagesMessages:
		return v.Messages, v.Chats, v.Users, true
	case *tg.MessagesMessagesSlice:
		return v.Messages, v.Chats, v.Users, true
	case *tg.MessagesChannelMessages:
		return v.Messages, v.Chats, v.Users, true
	}
	return nil, nil, nil, false
}

// mediaInfo extracts the transferable attachment, if any. Web page
// previews and polls are not payloads.
func mediaInfo(media tg.MessageMediaClass) *telegram.MediaInfo {
	switch m := media.(type) {
	case *tg.MessageMediaDocument:
		docClass, ok := m.GetDocument()
		if !ok {
			return nil
		}
		doc, ok := docClass.AsNotEmpty()
		if !ok {
			return nil
		}

		info := &telegram.MediaInfo{Size: doc.Size}
		for _, attr := range doc.Attributes {
			if name, ok := attr.(*tg.DocumentAttributeFilename); ok {
				info.Filename = name.FileName
			}
		}
		return info

	case *tg.MessageMediaPhoto:
		photoClass, ok := m.GetPhoto()
		if !ok {
			return nil
		}
		photo, ok := photoClass.AsNotEmpty()
		if !ok {
			return nil
		}

		if _, size := largestPhotoSize(photo.Sizes); size > 0 {
			return &telegram.MediaInfo{Size: int64(size)}
		}
	}
	return nil
}

// largestPhotoSize picks the biggest server-rendered variant. A
// progressive size reports cumulative byte counts per quality level;
// the last one is the full image.
func largestPhotoSize(sizes []tg.PhotoSizeClass) (string, int) {
	var (
		bestType string
		best     int
	)
	for _, s := range sizes {
		switch v := s.(type) {
		case *tg.PhotoSize:
			if v.Size > best {
				best, bestType = v.Size, v.Type
			}
		case *tg.PhotoSizeProgressive:
			if n := len(v.Sizes); n > 0 && v.Sizes[n-1] > best {
				best, bestType = v.Sizes[n-1], v.Type
			}
		}
	}
	return bestType, best
}

// Forward copies a message into another chat and returns the copy.
func (c *Client) Forward(ctx context.Context, from telegram.Peer, to telegram.Peer, id int) (*telegram.Message, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	rid, err := randomID()
	if err != nil {
		return nil, err
	}

	updates, err := c.api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer: inputPeer(from),
		ToPeer:   inputPeer(to),
		ID:       []int{id},
		RandomID: []int64{rid},
	})
	if err != nil {
		return nil, apperr.Wrapf(apperr.Transport, err, "failed to forward message %d", id)
	}

	copyID := sentMessageID(updates)
	if copyID == 0 {
		return nil, apperr.New(apperr.Transport, "forward response carried no new message id")
	}
	return &telegram.Message{ID: copyID, ChatID: to.ID, Peer: to}, nil
}

// LastMessageID returns the id of the newest message in the chat, or
// zero when the chat is empty.
func (c *Client) LastMessageID(ctx context.Context, peer telegram.Peer) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}

	result, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  inputPeer(peer),
		Limit: 1,
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.Transport, "failed to read the chat history", err)
	}

	messages, chats, users, ok := unpackMessages(result)
	if !ok {
		return 0, apperr.New(apperr.Transport, "unexpected response to a history fetch")
	}
	c.cachePeers(chats, users)

	for _, m := range messages {
		switch v := m.(type) {
		case *tg.Message:
			return v.ID, nil
		case *tg.MessageService:
			return v.ID, nil
		}
	}
	return 0, nil
}

// DeleteAllExcept wipes the chat history, sparing one message.
func (c *Client) DeleteAllExcept(ctx context.Context, peer telegram.Peer, keepID int) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	lastSeen := 0
	for {
		result, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:  inputPeer(peer),
			Limit: historyPageSize,
		})
		if err != nil {
			return apperr.Wrap(apperr.Transport, "failed to read the chat history", err)
		}

		messages, _, _, ok := unpackMessages(result)
		if !ok {
			return apperr.New(apperr.Transport, "unexpected response to a history fetch")
		}

		ids := make([]int, 0, len(messages))
		for _, m := range messages {
			var id int
			switch v := m.(type) {
			case *tg.Message:
				id = v.ID
			case *tg.MessageService:
				id = v.ID
			}
			if id != 0 && id != keepID {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		if ids[0] == lastSeen {
			// Whatever is left did not go away last round; service
			// messages in legacy groups cannot always be revoked.
			return nil
		}
		lastSeen = ids[0]

		if err := c.Delete(ctx, peer, ids...); err != nil {
			return err
		}
	}
}
