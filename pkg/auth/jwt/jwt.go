// Package jwt authenticates MCP callers by signed JWT bearer tokens.
//
// Tokens are verified against a static key: either a shared HMAC secret
// (HS256/384/512) or an RSA public key in PEM form (RS256/384/512). The
// subject, tier and scopes are read from configurable claims.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rhuss/askstream/pkg/auth"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string

	// Audience is the expected aud claim. Empty disables the check.
	Audience string

	// Secret is the shared HMAC key. Mutually exclusive with PublicKeyPEM.
	Secret []byte

	// PublicKeyPEM is a PEM encoded RSA public key.
	PublicKeyPEM []byte

	// UserClaim names the subject claim. Default: "sub".
	UserClaim string

	// TierClaim names the rate limit tier claim. Default: "tier".
	TierClaim string

	// ScopesClaim names the scopes claim. Default: "scope".
	// The value may be a space separated string or an array.
	ScopesClaim string
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	config  Config
	key     any
	methods []string
}

// New creates a JWT authenticator. It fails when neither or both key kinds
// are configured, or when the PEM key cannot be parsed.
func New(cfg Config) (*Authenticator, error) {
	cfg.applyDefaults()

	a := &Authenticator{config: cfg}
	switch {
	case len(cfg.Secret) > 0 && len(cfg.PublicKeyPEM) > 0:
		return nil, errors.New("jwt: configure either a secret or a public key, not both")
	case len(cfg.Secret) > 0:
		a.key = cfg.Secret
		a.methods = []string{"HS256", "HS384", "HS512"}
	case len(cfg.PublicKeyPEM) > 0:
		pub, err := jwtlib.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("jwt: parsing public key: %w", err)
		}
		a.key = pub
		a.methods = []string{"RS256", "RS384", "RS512"}
	default:
		return nil, errors.New("jwt: no verification key configured")
	}
	return a, nil
}

// Authenticate votes Abstain without a bearer token, No for any token that
// fails verification and Yes with the extracted identity otherwise.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	tokenStr, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if tokenStr == "" {
		return auth.Result{Decision: auth.No, Err: errors.New("empty bearer token")}
	}

	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(tokenStr, claims, func(*jwtlib.Token) (any, error) {
		return a.key, nil
	}, a.parserOptions()...)
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	subject := claimString(claims, a.config.UserClaim)
	if subject == "" {
		return auth.Result{
			Decision: auth.No,
			Err:      fmt.Errorf("JWT missing %q claim", a.config.UserClaim),
		}
	}

	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject: subject,
			Tier:    claimString(claims, a.config.TierClaim),
			Scopes:  extractScopes(claims, a.config.ScopesClaim),
		},
	}
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods(a.methods)}
	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}
	return opts
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

func extractScopes(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		if parts := strings.Fields(v); len(parts) > 0 {
			return parts
		}
	case []any:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}
