package perplexity

import (
	"io"
	"strings"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/provider"
)

// Provider implements provider.Protocol for the Perplexity web backend.
type Provider struct {
	cfg        Config
	validation api.ValidationConfig
}

var _ provider.Protocol = (*Provider)(nil)

// New creates a Provider. Zero config fields take their defaults.
func New(cfg Config) *Provider {
	cfg.applyDefaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	validation := api.DefaultValidationConfig()
	if cfg.MaxQueryLength > 0 {
		validation.MaxQueryLength = cfg.MaxQueryLength
	}
	return &Provider{cfg: cfg, validation: validation}
}

// Name returns "perplexity".
func (p *Provider) Name() string {
	return "perplexity"
}

// Config returns the effective configuration.
func (p *Provider) Config() Config {
	return p.cfg
}

// NewEventReader returns a frame decoder bounded by the configured
// MaxFrameBytes.
func (p *Provider) NewEventReader(body io.Reader) provider.EventReader {
	return NewReader(body, p.cfg.MaxFrameBytes)
}
