package doubaospeech

import (
	"net/http"
	"time"
)

const (
	defaultWSURL          = "wss://openspeech.bytedance.com"
	defaultTimeout        = 10 * time.Second
	defaultRetries        = 2
	defaultRetryBackoff   = time.Second
	defaultFinishTimeout  = time.Second
	defaultWriteTimeout   = 5 * time.Second
	realtimeDialoguePath  = "/api/v3/realtime/dialogue"
	maxFinishWaitAttempts = 50
)

// AppKeyRealtime is the fixed X-Api-App-Key for the realtime dialogue API.
// Doc: https://www.volcengine.com/docs/6561/1594356
const AppKeyRealtime = "PlgvMymc7f3tQnJ6"

// ResourceRealtime 端到端实时语音大模型
const ResourceRealtime = "volc.speech.dialog"

// Client represents a Doubao Speech API client.
type Client struct {
	// Realtime 端到端实时语音大模型 (/api/v3/realtime/dialogue)
	Realtime *RealtimeService

	config *clientConfig
}

// clientConfig represents client configuration
type clientConfig struct {
	appID         string
	accessToken   string // Bearer Token, used as X-Api-Access-Key when no access key is set
	accessKey     string // X-Api-Access-Key
	appKey        string // X-Api-App-Key override
	resourceID    string
	wsURL         string
	timeout       time.Duration // websocket handshake and protocol handshake reads
	retries       int
	retryBackoff  time.Duration
	finishTimeout time.Duration
	writeTimeout  time.Duration
	metrics       RealtimeMetrics
}

// Option represents configuration option function
type Option func(*clientConfig)

// NewClient creates Doubao Speech client
//
// appID is the application ID from Volcano Engine console
func NewClient(appID string, opts ...Option) *Client {
	config := &clientConfig{
		appID:         appID,
		resourceID:    ResourceRealtime,
		wsURL:         defaultWSURL,
		timeout:       defaultTimeout,
		retries:       defaultRetries,
		retryBackoff:  defaultRetryBackoff,
		finishTimeout: defaultFinishTimeout,
		writeTimeout:  defaultWriteTimeout,
		metrics:       nopMetrics{},
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.retries < 1 {
		config.retries = 1
	}

	c := &Client{
		config: config,
	}
	c.Realtime = newRealtimeService(c)

	return c
}

// WithBearerToken uses the console access token as the access key.
func WithBearerToken(token string) Option {
	return func(c *clientConfig) {
		c.accessToken = token
	}
}

// WithV2APIKey uses V3 API Key authentication
//
// Header format:
//   - X-Api-Access-Key: {accessKey}
//   - X-Api-App-Key: {appKey}
//
// An empty appKey keeps the documented fixed key for the resource.
func WithV2APIKey(accessKey, appKey string) Option {
	return func(c *clientConfig) {
		c.accessKey = accessKey
		c.appKey = appKey
	}
}

// WithResourceID sets the X-Api-Resource-Id header.
//
// Default: volc.speech.dialog
func WithResourceID(resourceID string) Option {
	return func(c *clientConfig) {
		if resourceID != "" {
			c.resourceID = resourceID
		}
	}
}

// WithWebSocketURL sets WebSocket URL
//
// Default: wss://openspeech.bytedance.com
func WithWebSocketURL(url string) Option {
	return func(c *clientConfig) {
		c.wsURL = url
	}
}

// WithTimeout bounds the websocket dial and each handshake read.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets how many times the transport is opened before giving up.
//
// Default: 2
func WithRetries(n int) Option {
	return func(c *clientConfig) {
		c.retries = n
	}
}

// WithRetryBackoff sets the fixed delay between connection attempts.
//
// Default: 1s
func WithRetryBackoff(d time.Duration) Option {
	return func(c *clientConfig) {
		c.retryBackoff = d
	}
}

// WithFinishTimeout bounds each wait for a reply while finishing a session.
func WithFinishTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.finishTimeout = d
	}
}

// WithRealtimeMetrics installs a sink for session counters.
func WithRealtimeMetrics(m RealtimeMetrics) Option {
	return func(c *clientConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// realtimeURL returns the dialogue endpoint.
func (c *Client) realtimeURL() string {
	return c.config.wsURL + realtimeDialoguePath
}

// getV2WSHeaders returns WebSocket headers for V3 APIs
func (c *Client) getV2WSHeaders(resourceID, connectID string) http.Header {
	headers := http.Header{}

	appKey := c.config.appKey
	if appKey == "" {
		switch resourceID {
		case ResourceRealtime:
			appKey = AppKeyRealtime // Fixed value from documentation
		default:
			appKey = c.config.appID
		}
	}
	headers.Set("X-Api-App-Key", appKey)
	headers.Set("X-Api-App-Id", c.config.appID)

	if c.config.accessKey != "" {
		headers.Set("X-Api-Access-Key", c.config.accessKey)
	} else if c.config.accessToken != "" {
		headers.Set("X-Api-Access-Key", c.config.accessToken)
	}

	if resourceID != "" {
		headers.Set("X-Api-Resource-Id", resourceID)
	}
	if connectID != "" {
		headers.Set("X-Api-Connect-Id", connectID)
	}

	return headers
}
