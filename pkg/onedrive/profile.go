package onedrive

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/marmos91/telebridge/internal/apperr"
)

// Profile identifies the signed-in drive account.
type Profile struct {
	// Username is the account's userPrincipalName, the key the session
	// store files the account under.
	Username string `json:"userPrincipalName"`
}

// Me returns the signed-in account's profile. Called once per login to
// name the stored session.
func (c *Client) Me(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.GraphBase+"/me", nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to build profile request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transport, "failed to fetch profile", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeGraphError(resp)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, apperr.Wrap(apperr.Protocol, "failed to decode profile response", err)
	}
	if profile.Username == "" {
		return nil, apperr.New(apperr.Protocol, "profile response carries no userPrincipalName")
	}

	return &profile, nil
}
