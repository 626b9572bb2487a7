// Package hirelane provides the Hirelane Go client for live AI interview
// sessions.
//
// A Client talks to the platform's interview backend over REST and opens the
// realtime websocket for live sessions. Interviews.Start assembles the full
// media and session stack; most applications only need that entry point.
package hirelane

import (
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hirelane/interview-client/pkg/core"
	"github.com/hirelane/interview-client/pkg/core/interview"
)

const defaultBaseURL = "https://api.hirelane.com"

// Client is the main entry point for the SDK.
type Client struct {
	Interviews *InterviewService

	// Internal
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
	sessionCfg interview.SessionConfig
}

// NewClient creates a new client. The API key falls back to the
// HIRELANE_API_KEY environment variable when not set explicitly.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		logger:     logrus.StandardLogger(),
		sessionCfg: interview.DefaultSessionConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("HIRELANE_API_KEY")
	}
	if c.httpClient == nil {
		c.httpClient = newDefaultHTTPClient()
	}

	c.Interviews = &InterviewService{client: c}
	return c
}

// endpoint joins the base URL with an API path.
func (c *Client) endpoint(path string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(c.baseURL), "/")
	if base == "" {
		return "", core.NewInvalidRequestError("base URL must not be empty")
	}
	return base + path, nil
}

// webSocketEndpoint translates the base URL to its websocket form.
func (c *Client) webSocketEndpoint(path string) (string, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", core.NewInvalidRequestError("invalid base URL")
	}
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already websocket scheme.
	default:
		return "", core.NewInvalidRequestError("base URL must use http(s) or ws(s)")
	}
	return u.String(), nil
}
