package perplexity

import (
	"net/http"
	"time"
)

// Backend endpoints and protocol constants.
const (
	DefaultBaseURL = "https://www.perplexity.ai"
	APIVersion     = "2.18"
	AskPath        = "/rest/sse/perplexity_ask"
	SessionPath    = "/api/auth/session"
)

// DefaultMaxFrameBytes bounds a single SSE frame.
const DefaultMaxFrameBytes = 1 << 20

// Config holds configuration for the Perplexity backend adapter.
type Config struct {
	// BaseURL is the backend origin. Defaults to DefaultBaseURL.
	BaseURL string

	// MaxFrameBytes bounds the size of one frame. A larger frame fails the
	// stream with frame_too_large. Defaults to DefaultMaxFrameBytes.
	MaxFrameBytes int

	// MaxQueryLength bounds the query text in characters. Zero keeps the
	// api package default.
	MaxQueryLength int

	// WarmUpTimeout bounds the session warm-up request. Streaming requests
	// are bounded by their context only. Defaults to 10s.
	WarmUpTimeout time.Duration

	// UserAgent is sent on every request when set.
	UserAgent string

	// HTTPClient allows injecting a custom client (useful for testing).
	// Its Timeout is ignored for streams.
	HTTPClient *http.Client
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if c.WarmUpTimeout == 0 {
		c.WarmUpTimeout = 10 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
}
