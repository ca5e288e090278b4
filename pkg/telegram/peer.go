package telegram

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/marmos91/telebridge/internal/apperr"
)

// PeerKind discriminates the addressing form of a chat.
type PeerKind byte

const (
	// PeerUser is a direct chat with a user or bot.
	PeerUser PeerKind = 'u'

	// PeerChat is a legacy small group.
	PeerChat PeerKind = 'g'

	// PeerChannel is a channel or supergroup.
	PeerChannel PeerKind = 'c'
)

// peerTokenLen is the encoded size: kind byte, id, access hash.
const peerTokenLen = 1 + 8 + 8

// Peer addresses one chat for one client identity. Channels and users
// carry a per-identity access hash, so the same chat encodes to a
// different token for the bot and for the user client. Task rows store
// both tokens.
type Peer struct {
	Kind       PeerKind
	ID         int64
	AccessHash int64
}

// Hex encodes the peer as the opaque token task rows carry.
func (p Peer) Hex() string {
	var buf [peerTokenLen]byte
	buf[0] = byte(p.Kind)
	binary.BigEndian.PutUint64(buf[1:9], uint64(p.ID))
	binary.BigEndian.PutUint64(buf[9:17], uint64(p.AccessHash))

	return hex.EncodeToString(buf[:])
}

// DecodePeer parses a token produced by Hex.
func DecodePeer(token string) (Peer, error) {
	raw, err := hex.DecodeString(token)
	if err != nil {
		return Peer{}, apperr.Wrapf(apperr.Validation, err, "failed to decode peer token %q", token)
	}
	if len(raw) != peerTokenLen {
		return Peer{}, apperr.Newf(apperr.Validation, "peer token %q has length %d, want %d", token, len(raw), peerTokenLen)
	}

	kind := PeerKind(raw[0])
	switch kind {
	case PeerUser, PeerChat, PeerChannel:
	default:
		return Peer{}, apperr.Newf(apperr.Validation, "peer token %q has unknown kind %q", token, kind)
	}

	return Peer{
		Kind:       kind,
		ID:         int64(binary.BigEndian.Uint64(raw[1:9])),
		AccessHash: int64(binary.BigEndian.Uint64(raw[9:17])),
	}, nil
}

// botChannelOffset converts between bare channel ids and the bot API's
// signed -100xxxxxxxxxx form.
const botChannelOffset = 1_000_000_000_000

// BotChatID returns the chat id in the bot API's signed convention.
func (p Peer) BotChatID() int64 {
	switch p.Kind {
	case PeerChannel:
		return -botChannelOffset - p.ID
	case PeerChat:
		return -p.ID
	default:
		return p.ID
	}
}

// PeerFromBotChatID converts a bot API chat id into a peer. The bot API
// does not use access hashes, so the hash is zero.
func PeerFromBotChatID(chatID int64) Peer {
	switch {
	case chatID <= -botChannelOffset:
		return Peer{Kind: PeerChannel, ID: -chatID - botChannelOffset}
	case chatID < 0:
		return Peer{Kind: PeerChat, ID: -chatID}
	default:
		return Peer{Kind: PeerUser, ID: chatID}
	}
}
