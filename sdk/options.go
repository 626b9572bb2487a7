package hirelane

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hirelane/interview-client/pkg/core/interview"
)

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the platform base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithAPIKey sets the Hirelane API key.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l *logrus.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSessionConfig sets the default session configuration used by
// Interviews.Start. Per-session options still override it.
func WithSessionConfig(cfg interview.SessionConfig) ClientOption {
	return func(c *Client) {
		c.sessionCfg = cfg
	}
}

// WithHeartbeat sets the heartbeat interval and staleness timeout for
// realtime connections.
func WithHeartbeat(interval, timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.sessionCfg.Heartbeat = interview.HeartbeatConfig{Interval: interval, Timeout: timeout}
	}
}

// WithReconnect bounds reconnection after a stale realtime connection.
func WithReconnect(maxAttempts uint64, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.sessionCfg.Reconnect = interview.ReconnectConfig{MaxAttempts: maxAttempts, Backoff: backoff}
	}
}
