package onedrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/marmos91/telebridge/internal/apperr"
)

// UploadSession is a resumable upload opened against a destination path.
// The upload URL is pre-authorized; part uploads carry no token.
type UploadSession struct {
	UploadURL          string   `json:"uploadUrl"`
	ExpirationDateTime string   `json:"expirationDateTime"`
	NextExpectedRanges []string `json:"nextExpectedRanges"`
}

// DriveItem is the uploaded file as the drive sees it. The final part of
// an upload returns one; Name may differ from the requested filename when
// the drive renamed on conflict.
type DriveItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// NextOffset returns the start of the first byte range the session still
// expects, which is where an interrupted upload resumes.
func (s *UploadSession) NextOffset() (int64, error) {
	if len(s.NextExpectedRanges) == 0 {
		return 0, apperr.New(apperr.Protocol, "upload session reports no expected ranges")
	}

	start, _, _ := strings.Cut(s.NextExpectedRanges[0], "-")
	offset, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return 0, apperr.Wrapf(apperr.Protocol, err, "failed to parse expected range %q", s.NextExpectedRanges[0])
	}

	return offset, nil
}

// CreateUploadSession opens a resumable upload for the given absolute
// destination path. Conflicting names are renamed by the drive rather
// than overwritten; the final part's drive item reports the name that
// actually stuck.
func (c *Client) CreateUploadSession(ctx context.Context, accessToken, destPath string) (*UploadSession, error) {
	body, err := json.Marshal(map[string]any{
		"item": map[string]any{
			"@microsoft.graph.conflictBehavior": "rename",
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to encode upload session request", err)
	}

	endpoint := fmt.Sprintf("%s/me/drive/root:%s:/createUploadSession", c.config.GraphBase, escapePath(destPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to build upload session request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transport, "failed to create upload session", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, decodeGraphError(resp)
	}

	var session UploadSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, apperr.Wrap(apperr.Protocol, "failed to decode upload session response", err)
	}
	if session.UploadURL == "" {
		return nil, apperr.New(apperr.Protocol, "upload session response carries no upload url")
	}

	return &session, nil
}

// SessionStatus queries an existing upload session for the ranges it
// still expects. Workers call this when re-attaching after a restart.
func (c *Client) SessionStatus(ctx context.Context, uploadURL string) (*UploadSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uploadURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to build session status request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transport, "failed to query upload session", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeGraphError(resp)
	}

	var session UploadSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, apperr.Wrap(apperr.Protocol, "failed to decode session status response", err)
	}
	session.UploadURL = uploadURL

	return &session, nil
}

// UploadPart uploads one part of the session as the half-open byte range
// [offset, offset+len(part)) of total. Intermediate parts return
// (nil, nil); the final part returns the created drive item.
//
// Every part except the last must be a positive multiple of the 320Ki
// upload fragment, which the part size configuration guarantees.
func (c *Client) UploadPart(ctx context.Context, uploadURL string, part []byte, offset, total int64) (*DriveItem, error) {
	if len(part) == 0 {
		return nil, apperr.New(apperr.Internal, "refusing to upload an empty part")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(part))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to build part request", err)
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(part))-1, total))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transport, "failed to upload part", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		// More parts expected.
		return nil, nil

	case http.StatusOK, http.StatusCreated:
		var item DriveItem
		if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
			return nil, apperr.Wrap(apperr.Protocol, "failed to decode drive item response", err)
		}
		return &item, nil

	default:
		return nil, decodeGraphError(resp)
	}
}

// AbortUploadSession cancels a pending upload session. Best effort:
// callers on the cancellation path log failures and move on.
func (c *Client) AbortUploadSession(ctx context.Context, uploadURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, uploadURL, nil)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to build abort request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Transport, "failed to abort upload session", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return decodeGraphError(resp)
	}

	return nil
}

// escapePath escapes each segment of an absolute drive path while
// keeping the separators, as the Graph path addressing form requires.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	return strings.Join(segments, "/")
}
