package transfer

import (
	"context"
	"io"

	"github.com/marmos91/telebridge/pkg/telegram"
)

// MediaOpener is the slice of the user-identity client a media source
// needs.
type MediaOpener interface {
	OpenMedia(ctx context.Context, peer telegram.Peer, messageID int, offset int64) (io.ReadCloser, error)
}

// MediaSource streams a message attachment through the user-identity
// client. File tasks read the trigger message itself; link tasks read
// the message the submitted t.me link pointed at.
type MediaSource struct {
	client    MediaOpener
	peer      telegram.Peer
	messageID int
}

// NewMediaSource creates a source for the attachment of one message.
func NewMediaSource(client MediaOpener, peer telegram.Peer, messageID int) *MediaSource {
	return &MediaSource{
		client:    client,
		peer:      peer,
		messageID: messageID,
	}
}

// Open starts the media download at the given offset.
func (s *MediaSource) Open(ctx context.Context, offset int64) (io.ReadCloser, error) {
	return s.client.OpenMedia(ctx, s.peer, s.messageID, offset)
}
