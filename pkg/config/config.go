// Package config provides unified configuration for the askstream server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ASKSTREAM_ and PERPLEXITY_ prefixes)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/rhuss/askstream/pkg/provider/perplexity"
)

// Transport modes for the MCP server.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all configuration for the askstream server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Backend       BackendConfig       `yaml:"backend"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds MCP serving settings.
type ServerConfig struct {
	Transport         string        `yaml:"transport"`           // default: "stdio"
	Host              string        `yaml:"host"`                // default: "" (all interfaces)
	Port              int           `yaml:"port"`                // default: 8080
	MCPPath           string        `yaml:"mcp_path"`            // default: "/mcp"
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"` // default: 10s
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`    // default: 30s

	// Tools limits the exposed tools. Empty exposes all of them.
	Tools []string `yaml:"tools"`
}

// BackendConfig holds the answer backend connection settings.
type BackendConfig struct {
	BaseURL          string        `yaml:"base_url"`
	SessionToken     string        `yaml:"session_token"`
	SessionTokenFile string        `yaml:"session_token_file"`
	CSRFToken        string        `yaml:"csrf_token"`
	CSRFTokenFile    string        `yaml:"csrf_token_file"`
	Timeout          time.Duration `yaml:"timeout"`      // default: 5m
	IdleTimeout      time.Duration `yaml:"idle_timeout"` // default: 90s, negative disables
	MaxFrameBytes    int           `yaml:"max_frame_bytes"`
	MaxQueryLength   int           `yaml:"max_query_length"`
	Incognito        bool          `yaml:"incognito"` // default: true
	WarmUp           bool          `yaml:"warm_up"`
	WarmUpTimeout    time.Duration `yaml:"warm_up_timeout"`
	UserAgent        string        `yaml:"user_agent"`
}

// StorageConfig holds conversation thread storage settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory", "postgres" or "none"
	MaxSize  int            `yaml:"max_size"` // memory store LRU limit
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	DSNFile         string        `yaml:"dsn_file"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
}

// AuthConfig holds inbound authentication settings for the HTTP transport.
type AuthConfig struct {
	Type      string          `yaml:"type"` // "none", "apikey" or "jwt"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"`
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes one static API key.
type APIKeyConfig struct {
	Key     string   `yaml:"key" json:"key"`
	KeyFile string   `yaml:"key_file" json:"key_file"`
	Subject string   `yaml:"subject" json:"subject"`
	Tier    string   `yaml:"tier" json:"tier"`
	Scopes  []string `yaml:"scopes" json:"scopes"`
}

// JWTConfig holds bearer token validation settings.
type JWTConfig struct {
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	Secret        string `yaml:"secret"`
	SecretFile    string `yaml:"secret_file"`
	PublicKeyFile string `yaml:"public_key_file"`
	UserClaim     string `yaml:"user_claim"`
	TierClaim     string `yaml:"tier_claim"`
	ScopesClaim   string `yaml:"scopes_claim"`
}

// RateLimitConfig sets requests per minute per identity. Zero disables
// limiting for the tier.
type RateLimitConfig struct {
	DefaultRPM int            `yaml:"default_rpm"`
	Tiers      map[string]int `yaml:"tiers"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "INFO"
	Format string `yaml:"format"` // "text" or "json"
	Debug  string `yaml:"debug"`  // comma separated debug categories
}

// Defaults returns a Config with all default values applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Transport:         TransportStdio,
			Port:              8080,
			MCPPath:           "/mcp",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Backend: BackendConfig{
			BaseURL:       perplexity.DefaultBaseURL,
			Timeout:       5 * time.Minute,
			IdleTimeout:   90 * time.Second,
			MaxFrameBytes: perplexity.DefaultMaxFrameBytes,
			Incognito:     true,
			WarmUpTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns:        10,
				MinConns:        1,
				MaxConnLifetime: 30 * time.Minute,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
