package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rhuss/askstream/pkg/tools"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport))
	}
	if c.Server.Transport == TransportHTTP {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
		}
		if !strings.HasPrefix(c.Server.MCPPath, "/") {
			errs = append(errs, fmt.Errorf("server.mcp_path must start with /, got %q", c.Server.MCPPath))
		}
	}
	if _, err := tools.EnabledTools(c.Server.Tools, c.Storage.Type != "none"); err != nil {
		errs = append(errs, fmt.Errorf("server.tools: %w", err))
	}

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("backend.timeout must be > 0, got %v", c.Backend.Timeout))
	}
	if c.Backend.MaxFrameBytes < 0 {
		errs = append(errs, fmt.Errorf("backend.max_frame_bytes must be >= 0, got %d", c.Backend.MaxFrameBytes))
	}
	if c.Backend.MaxQueryLength < 0 {
		errs = append(errs, fmt.Errorf("backend.max_query_length must be >= 0, got %d", c.Backend.MaxQueryLength))
	}

	switch c.Storage.Type {
	case "memory", "postgres", "none":
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\", or \"none\", got %q", c.Storage.Type))
	}
	if c.Storage.Type == "memory" && c.Storage.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("storage.max_size must be >= 0, got %d", c.Storage.MaxSize))
	}
	if c.Storage.Type == "postgres" && c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
		errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys is required when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" && k.KeyFile == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
			if k.Subject == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].subject is required", i))
			}
		}
	case "jwt":
		hasSecret := c.Auth.JWT.Secret != "" || c.Auth.JWT.SecretFile != ""
		hasKey := c.Auth.JWT.PublicKeyFile != ""
		if hasSecret == hasKey {
			errs = append(errs, fmt.Errorf("auth.jwt needs exactly one of secret, secret_file, or public_key_file"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}
	if c.Auth.RateLimit.DefaultRPM < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.default_rpm must be >= 0, got %d", c.Auth.RateLimit.DefaultRPM))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
