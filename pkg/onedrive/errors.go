package onedrive

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/marmos91/telebridge/internal/apperr"
)

// maxErrorBody bounds how much of an error response is read. Graph error
// envelopes are small; anything larger is noise.
const maxErrorBody = 8 << 10

// graphError is the Graph API error envelope.
type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// tokenError is the OAuth token endpoint's error shape, which differs
// from the Graph envelope.
type tokenError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// kindForStatus maps an HTTP status to an error classification. 401 and
// 403 become authorization errors so callers restart the login flow
// instead of surfacing them.
func kindForStatus(status int) apperr.Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.Authorization
	case http.StatusNotFound:
		return apperr.NotFound
	default:
		return apperr.Protocol
	}
}

// decodeGraphError turns a non-2xx Graph response into a classified
// error carrying the provider's code and message when present.
func decodeGraphError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	kind := kindForStatus(resp.StatusCode)

	var ge graphError
	if err := json.Unmarshal(body, &ge); err == nil && ge.Error.Code != "" {
		return apperr.Newf(kind, "graph api error %s: %s: %s", resp.Status, ge.Error.Code, ge.Error.Message)
	}

	return apperr.Newf(kind, "graph api error %s: %s", resp.Status, strings.TrimSpace(string(body)))
}

// decodeTokenError turns a non-2xx token endpoint response into a
// classified error. invalid_grant means the refresh token is dead and a
// fresh login is needed, so it maps to an authorization error regardless
// of status code.
func decodeTokenError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	kind := kindForStatus(resp.StatusCode)

	var te tokenError
	if err := json.Unmarshal(body, &te); err == nil && te.Code != "" {
		if te.Code == "invalid_grant" {
			kind = apperr.Authorization
		}
		return apperr.Newf(kind, "token endpoint error %s: %s: %s", resp.Status, te.Code, te.Description)
	}

	return apperr.Newf(kind, "token endpoint error %s: %s", resp.Status, strings.TrimSpace(string(body)))
}
