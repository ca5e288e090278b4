package telegram

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/marmos91/telebridge/internal/apperr"
)

// MessageLink is a parsed t.me message link. Exactly one of ChatID and
// Username is set: private channel links carry the bare numeric id,
// public chat links carry the username.
type MessageLink struct {
	ChatID    int64
	Username  string
	MessageID int
}

// ParseMessageLink parses the two t.me message link forms:
//
//	https://t.me/c/<chat_id>/<message_id>
//	https://t.me/<username>/<message_id>
//
// Links into forum topics carry an extra middle segment
// (t.me/c/<chat_id>/<topic_id>/<message_id>); the topic id is dropped
// since message ids are chat-global.
func ParseMessageLink(raw string) (*MessageLink, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, apperr.Wrapf(apperr.Validation, err, "failed to parse message link %q", raw)
	}

	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return nil, apperr.Newf(apperr.Validation, "message link %q is not an http(s) link", raw)
	}
	if parsed.Host != "t.me" && parsed.Host != "telegram.me" {
		return nil, apperr.Newf(apperr.Validation, "message link %q does not point at t.me", raw)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")

	if len(segments) >= 2 && segments[0] == "c" {
		return parseChannelLink(raw, segments[1:])
	}
	if len(segments) == 2 {
		id, err := strconv.Atoi(segments[1])
		if err != nil || id <= 0 {
			return nil, apperr.Newf(apperr.Validation, "message link %q has no message id", raw)
		}
		return &MessageLink{Username: segments[0], MessageID: id}, nil
	}

	return nil, apperr.Newf(apperr.Validation, "message link %q is not a message link", raw)
}

func parseChannelLink(raw string, segments []string) (*MessageLink, error) {
	// Topic links insert the topic id between chat and message; only the
	// first and last segments matter.
	switch len(segments) {
	case 2:
	case 3:
		segments = []string{segments[0], segments[2]}
	default:
		return nil, apperr.Newf(apperr.Validation, "message link %q is not a message link", raw)
	}

	chatID, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || chatID <= 0 {
		return nil, apperr.Newf(apperr.Validation, "message link %q has no chat id", raw)
	}

	id, err := strconv.Atoi(segments[1])
	if err != nil || id <= 0 {
		return nil, apperr.Newf(apperr.Validation, "message link %q has no message id", raw)
	}

	return &MessageLink{ChatID: chatID, MessageID: id}, nil
}
