package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/askstream/pkg/debug"
)

// Environment variables read by Load.
const (
	EnvConfig       = "ASKSTREAM_CONFIG"
	EnvSessionToken = "PERPLEXITY_SESSION_TOKEN"
	EnvCSRFToken    = "PERPLEXITY_CSRF_TOKEN"
	EnvBaseURL      = "ASKSTREAM_BASE_URL"
	EnvTimeout      = "ASKSTREAM_TIMEOUT"
	EnvTransport    = "ASKSTREAM_TRANSPORT"
	EnvPort         = "ASKSTREAM_PORT"
	EnvStorage      = "ASKSTREAM_STORAGE"
	EnvAuthType     = "ASKSTREAM_AUTH_TYPE"
	EnvAPIKeys      = "ASKSTREAM_API_KEYS"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, ASKSTREAM_CONFIG env, ./config.yaml, /etc/askstream/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path. Returns empty string if
// no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/askstream/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile parses a YAML file over cfg. Fields not present in the
// file keep their current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
// Malformed numeric or JSON values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvSessionToken); v != "" {
		cfg.Backend.SessionToken = v
	}
	if v := os.Getenv(EnvCSRFToken); v != "" {
		cfg.Backend.CSRFToken = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.Backend.Timeout = d
	}
	if v := os.Getenv(EnvTransport); v != "" {
		cfg.Server.Transport = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(EnvStorage); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv(EnvAuthType); v != "" {
		cfg.Auth.Type = v
	}
	if v := os.Getenv(EnvAPIKeys); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAPIKeys, err)
		}
		cfg.Auth.APIKeys = keys
	}
	return nil
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields into their value fields. An
// explicit value wins over its file.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"backend.session_token_file", cfg.Backend.SessionTokenFile, &cfg.Backend.SessionToken},
		{"backend.csrf_token_file", cfg.Backend.CSRFTokenFile, &cfg.Backend.CSRFToken},
		{"storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN},
		{"auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret},
	}
	for i := range cfg.Auth.APIKeys {
		refs = append(refs, struct {
			name  string
			file  string
			value *string
		}{fmt.Sprintf("auth.api_keys[%d].key_file", i), cfg.Auth.APIKeys[i].KeyFile, &cfg.Auth.APIKeys[i].Key})
	}

	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
