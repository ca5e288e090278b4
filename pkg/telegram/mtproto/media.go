package mtproto

import (
	"context"
	"io"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/pkg/telegram"
)

// uploadChunkSize is the largest limit upload.getFile accepts; offsets
// must be aligned to it.
const uploadChunkSize = 1024 * 1024

// OpenMedia streams the attachment of a message starting at the given
// byte offset. Resumed transfers reopen mid-file.
func (c *Client) OpenMedia(ctx context.Context, peer telegram.Peer, messageID int, offset int64) (io.ReadCloser, error) {
	raw, err := c.fetchMessage(ctx, peer, messageID)
	if err != nil {
		return nil, err
	}

	location, size, err := mediaLocation(raw)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > size {
		return nil, apperr.Newf(apperr.Validation, "offset %d is outside the %d byte attachment", offset, size)
	}

	dl := &chunkFetcher{
		ctx:       ctx,
		client:    c,
		peer:      peer,
		messageID: messageID,
		location:  location,
	}
	return &mediaReader{offset: offset, size: size, fetch: dl.fetch}, nil
}

// mediaLocation builds the download location for a message attachment.
func mediaLocation(raw *tg.Message) (tg.InputFileLocationClass, int64, error) {
	switch m := raw.Media.(type) {
	case *tg.MessageMediaDocument:
		docClass, ok := m.GetDocument()
		if !ok {
			break
		}
		doc, ok := docClass.AsNotEmpty()
		if !ok {
			break
		}
		return &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}, doc.Size, nil

	case *tg.MessageMediaPhoto:
		photoClass, ok := m.GetPhoto()
		if !ok {
			break
		}
		photo, ok := photoClass.AsNotEmpty()
		if !ok {
			break
		}
		sizeType, size := largestPhotoSize(photo.Sizes)
		if size <= 0 {
			break
		}
		return &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     sizeType,
		}, int64(size), nil
	}
	return nil, 0, apperr.Newf(apperr.Validation, "message %d has no downloadable media", raw.ID)
}

// chunkFetcher pulls aligned chunks over the wire and renews the file
// reference when it expires mid-download.
type chunkFetcher struct {
	ctx       context.Context
	client    *Client
	peer      telegram.Peer
	messageID int
	location  tg.InputFileLocationClass
}

func (f *chunkFetcher) fetch(offset int64) ([]byte, error) {
	return f.fetchOnce(offset, false)
}

func (f *chunkFetcher) fetchOnce(offset int64, retried bool) ([]byte, error) {
	result, err := f.client.api.UploadGetFile(f.ctx, &tg.UploadGetFileRequest{
		Location: f.location,
		Offset:   offset,
		Limit:    uploadChunkSize,
	})
	if err != nil {
		// File references go stale after a few hours; refetching the
		// message mints a fresh one.
		if tgerr.Is(err, "FILE_REFERENCE_EXPIRED") && !retried {
			if rerr := f.refreshLocation(); rerr != nil {
				return nil, rerr
			}
			return f.fetchOnce(offset, true)
		}
		return nil, apperr.Wrap(apperr.Transport, "failed to download a media chunk", err)
	}

	file, ok := result.(*tg.UploadFile)
	if !ok {
		return nil, apperr.Newf(apperr.Transport, "unexpected upload.getFile response %T", result)
	}
	return file.Bytes, nil
}

func (f *chunkFetcher) refreshLocation() error {
	raw, err := f.client.fetchMessage(f.ctx, f.peer, f.messageID)
	if err != nil {
		return err
	}

	location, _, err := mediaLocation(raw)
	if err != nil {
		return err
	}
	f.location = location
	return nil
}

// mediaReader adapts chunked downloads to io.Reader. Reads past the
// known size return EOF without touching the wire.
type mediaReader struct {
	offset int64
	size   int64
	buf    []byte
	fetch  func(offset int64) ([]byte, error)
}

func (r *mediaReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	r.offset += int64(n)
	return n, nil
}

// fill fetches the chunk containing the current offset. Requests are
// aligned down to the chunk size and the lead-in is skipped locally.
func (r *mediaReader) fill() error {
	if r.offset >= r.size {
		return io.EOF
	}

	aligned := r.offset - r.offset%uploadChunkSize
	data, err := r.fetch(aligned)
	if err != nil {
		return err
	}

	skip := int(r.offset - aligned)
	if skip >= len(data) {
		return io.EOF
	}
	r.buf = data[skip:]
	return nil
}

func (r *mediaReader) Close() error {
	r.buf = nil
	return nil
}
