// Package onedrive is a small Microsoft Graph client covering what the
// bridge needs from the drive: the OAuth code exchange with refresh
// rotation, the profile lookup that keys stored sessions, and resumable
// upload sessions for multipart transfers.
//
// The client is stateless; access tokens are passed per call so the
// session store stays the single owner of credentials.
package onedrive

import (
	"net/http"
	"time"
)

const (
	defaultAuthBase  = "https://login.microsoftonline.com/common/oauth2/v2.0"
	defaultGraphBase = "https://graph.microsoft.com/v1.0"

	// scope requests drive writes plus offline_access so token responses
	// carry a refresh token, and User.Read for the profile lookup.
	scope = "offline_access Files.ReadWrite.All User.Read"

	defaultTimeout = 60 * time.Second
)

// Config configures the Graph client.
type Config struct {
	// ClientID and ClientSecret identify the registered OAuth application.
	ClientID     string
	ClientSecret string

	// RedirectURL is the OAuth redirect URI registered for the
	// application. The callback server receives the code there.
	RedirectURL string

	// AuthBase and GraphBase override the Microsoft endpoints. Tests
	// point them at local servers; production leaves them empty.
	AuthBase  string
	GraphBase string

	// HTTPClient overrides the transport used for every call.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.AuthBase == "" {
		c.AuthBase = defaultAuthBase
	}
	if c.GraphBase == "" {
		c.GraphBase = defaultGraphBase
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
}

// Client talks to the Microsoft Graph API.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a Graph client from the given configuration.
func NewClient(config Config) *Client {
	config.applyDefaults()

	return &Client{
		config: config,
		http:   config.HTTPClient,
	}
}
