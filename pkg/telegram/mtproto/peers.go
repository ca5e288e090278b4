package mtproto

import (
	"context"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/pkg/telegram"
)

const (
	dialogPageSize = 100

	// maxDialogPages bounds the resolution scan. A chat further down
	// the dialog list than this is not one the operator bridges from.
	maxDialogPages = 10
)

// inputPeer converts a transport-neutral peer to the MTProto form.
func inputPeer(p telegram.Peer) tg.InputPeerClass {
	switch p.Kind {
	case telegram.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ID}
	case telegram.PeerChannel:
		return &tg.InputPeerChannel{ChannelID: p.ID, AccessHash: p.AccessHash}
	default:
		return &tg.InputPeerUser{UserID: p.ID, AccessHash: p.AccessHash}
	}
}

func inputChannel(p telegram.Peer) *tg.InputChannel {
	return &tg.InputChannel{ChannelID: p.ID, AccessHash: p.AccessHash}
}

// peerBareID extracts the id from a wire peer, dropping the kind.
func peerBareID(p tg.PeerClass) int64 {
	switch v := p.(type) {
	case *tg.PeerUser:
		return v.UserID
	case *tg.PeerChat:
		return v.ChatID
	case *tg.PeerChannel:
		return v.ChannelID
	}
	return 0
}

// cachePeers records the access hashes of every chat and user in an API
// response. Hashes are per-account, so the cache belongs to the client.
func (c *Client) cachePeers(chats []tg.ChatClass, users []tg.UserClass) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, chat := range chats {
		switch v := chat.(type) {
		case *tg.Chat:
			c.peers[v.ID] = telegram.Peer{Kind: telegram.PeerChat, ID: v.ID}
		case *tg.Channel:
			c.peers[v.ID] = telegram.Peer{Kind: telegram.PeerChannel, ID: v.ID, AccessHash: v.AccessHash}
		}
	}
	for _, user := range users {
		if v, ok := user.(*tg.User); ok {
			c.peers[v.ID] = telegram.Peer{Kind: telegram.PeerUser, ID: v.ID, AccessHash: v.AccessHash}
		}
	}
}

func (c *Client) cachedPeer(chatID int64) (telegram.Peer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	peer, ok := c.peers[chatID]
	return peer, ok
}

// ResolvePeer finds the full address of a chat by its bare id. The bot
// API strips access hashes, so ids arriving from the bot identity have
// to be matched against the account's dialog list.
func (c *Client) ResolvePeer(ctx context.Context, chatID int64) (telegram.Peer, error) {
	if peer, ok := c.cachedPeer(chatID); ok {
		return peer, nil
	}
	if err := c.wait(ctx); err != nil {
		return telegram.Peer{}, err
	}

	req := &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      dialogPageSize,
	}
	for page := 0; page < maxDialogPages; page++ {
		result, err := c.api.MessagesGetDialogs(ctx, req)
		if err != nil {
			return telegram.Peer{}, apperr.Wrap(apperr.Transport, "failed to list dialogs", err)
		}

		var (
			dialogs  []tg.DialogClass
			messages []tg.MessageClass
		)
		switch d := result.(type) {
		case *tg.MessagesDialogs:
			dialogs, messages = d.Dialogs, d.Messages
			c.cachePeers(d.Chats, d.Users)
		case *tg.MessagesDialogsSlice:
			dialogs, messages = d.Dialogs, d.Messages
			c.cachePeers(d.Chats, d.Users)
		}

		if peer, ok := c.cachedPeer(chatID); ok {
			return peer, nil
		}
		if len(dialogs) < dialogPageSize || !c.advanceDialogOffset(req, dialogs, messages) {
			break
		}
	}

	return telegram.Peer{}, apperr.Newf(apperr.NotFound, "no dialog with chat %d", chatID)
}

// advanceDialogOffset moves the pagination cursor past the last dialog
// of the current page.
func (c *Client) advanceDialogOffset(req *tg.MessagesGetDialogsRequest, dialogs []tg.DialogClass, messages []tg.MessageClass) bool {
	last, ok := dialogs[len(dialogs)-1].(*tg.Dialog)
	if !ok {
		return false
	}

	peerID := peerBareID(last.Peer)
	peer, ok := c.cachedPeer(peerID)
	if !ok {
		return false
	}

	req.OffsetPeer = inputPeer(peer)
	req.OffsetID = last.TopMessage
	for _, m := range messages {
		var (
			id, date int
			msgPeer  tg.PeerClass
		)
		switch msg := m.(type) {
		case *tg.Message:
			id, date, msgPeer = msg.ID, msg.Date, msg.PeerID
		case *tg.MessageService:
			id, date, msgPeer = msg.ID, msg.Date, msg.PeerID
		default:
			continue
		}
		if id == last.TopMessage && peerBareID(msgPeer) == peerID {
			req.OffsetDate = date
			break
		}
	}
	return true
}

// ResolveUsername looks up a public chat or channel by username.
func (c *Client) ResolveUsername(ctx context.Context, username string) (telegram.Peer, error) {
	if err := c.wait(ctx); err != nil {
		return telegram.Peer{}, err
	}

	resolved, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
			return telegram.Peer{}, apperr.Newf(apperr.NotFound, "no chat named %s", username)
		}
		return telegram.Peer{}, apperr.Wrapf(apperr.Transport, err, "failed to resolve username %s", username)
	}

	c.cachePeers(resolved.Chats, resolved.Users)
	if peer, ok := c.cachedPeer(peerBareID(resolved.Peer)); ok {
		return peer, nil
	}
	return telegram.Peer{}, apperr.Newf(apperr.NotFound, "no chat named %s", username)
}
