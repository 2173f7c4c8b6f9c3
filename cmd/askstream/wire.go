package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/rhuss/askstream/pkg/auth"
	"github.com/rhuss/askstream/pkg/auth/apikey"
	"github.com/rhuss/askstream/pkg/auth/jwt"
	"github.com/rhuss/askstream/pkg/config"
	"github.com/rhuss/askstream/pkg/debug"
	"github.com/rhuss/askstream/pkg/engine"
	"github.com/rhuss/askstream/pkg/provider/perplexity"
	"github.com/rhuss/askstream/pkg/storage"
	"github.com/rhuss/askstream/pkg/storage/memory"
	"github.com/rhuss/askstream/pkg/storage/postgres"
	"github.com/rhuss/askstream/pkg/tools"
	"github.com/rhuss/askstream/pkg/transport"
)

func setupLogging(cfg config.LoggingConfig) {
	debug.Init(debug.Options{
		Categories: cfg.Debug,
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     os.Stderr,
	})
}

// backend bundles the query engine with the pieces built alongside it.
type backend struct {
	engine    *engine.Engine
	transport *perplexity.HTTPTransport
	creds     *auth.Credentials
}

func newBackend(cfg config.BackendConfig) (*backend, error) {
	pcfg := perplexity.Config{
		BaseURL:        cfg.BaseURL,
		MaxFrameBytes:  cfg.MaxFrameBytes,
		MaxQueryLength: cfg.MaxQueryLength,
		WarmUpTimeout:  cfg.WarmUpTimeout,
		UserAgent:      cfg.UserAgent,
	}
	ht := perplexity.NewHTTPTransport(pcfg)
	eng, err := engine.New(perplexity.New(pcfg), ht, engine.Config{
		Timeout:     cfg.Timeout,
		IdleTimeout: cfg.IdleTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return &backend{
		engine:    eng,
		transport: ht,
		creds:     auth.NewCredentials(cfg.SessionToken, cfg.CSRFToken),
	}, nil
}

// warmUp primes the backend session. Failures are logged; the first query
// reports credential problems to the caller anyway.
func (b *backend) warmUp(ctx context.Context) {
	if err := b.creds.Validate(); err != nil {
		slog.Warn("backend credentials incomplete", "error", err)
		return
	}
	if err := b.transport.WarmUp(ctx, b.creds); err != nil {
		slog.Warn("backend warm-up failed", "error", err)
		return
	}
	slog.Info("backend session warmed up")
}

// newStore returns nil when thread storage is disabled.
func newStore(ctx context.Context, cfg config.StorageConfig) (storage.ThreadStore, error) {
	switch cfg.Type {
	case "memory":
		slog.Info("thread storage enabled", "type", "memory", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MigrateOnStart:  cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("thread storage enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return store, nil
	case "none", "":
		slog.Info("thread storage disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// newAuthMiddleware returns nil when neither authentication nor rate
// limiting is configured.
func newAuthMiddleware(cfg config.AuthConfig) (transport.Middleware, error) {
	var limiter auth.RateLimiter
	if cfg.RateLimit.DefaultRPM > 0 || len(cfg.RateLimit.Tiers) > 0 {
		limiter = auth.NewFixedWindowLimiter(cfg.RateLimit.Tiers, cfg.RateLimit.DefaultRPM)
	}

	chain := &auth.Chain{DefaultDecision: auth.No}
	switch cfg.Type {
	case "none", "":
		if limiter == nil {
			return nil, nil
		}
		chain.DefaultDecision = auth.Yes
	case "apikey":
		keys := make([]apikey.Key, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			keys = append(keys, apikey.Key{
				Key:      k.Key,
				Identity: auth.Identity{Subject: k.Subject, Tier: k.Tier, Scopes: k.Scopes},
			})
		}
		chain.Authenticators = []auth.Authenticator{apikey.New(keys)}
	case "jwt":
		jcfg := jwt.Config{
			Issuer:      cfg.JWT.Issuer,
			Audience:    cfg.JWT.Audience,
			Secret:      []byte(cfg.JWT.Secret),
			UserClaim:   cfg.JWT.UserClaim,
			TierClaim:   cfg.JWT.TierClaim,
			ScopesClaim: cfg.JWT.ScopesClaim,
		}
		if cfg.JWT.PublicKeyFile != "" {
			pem, err := os.ReadFile(cfg.JWT.PublicKeyFile)
			if err != nil {
				return nil, fmt.Errorf("reading auth.jwt.public_key_file: %w", err)
			}
			jcfg.PublicKeyPEM = pem
		}
		a, err := jwt.New(jcfg)
		if err != nil {
			return nil, err
		}
		chain.Authenticators = []auth.Authenticator{a}
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}

	slog.Info("authentication enabled", "type", cfg.Type, "rate_limited", limiter != nil)
	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}

func newToolServer(cfg *config.Config, b *backend, store storage.ThreadStore) (*tools.Server, error) {
	if b == nil {
		return nil, errors.New("backend is not initialized")
	}
	return tools.New(b.engine, tools.Options{
		Name:        "askstream",
		Version:     version,
		Credentials: b.creds,
		Threads:     store,
		Incognito:   cfg.Backend.Incognito,
		Tools:       cfg.Server.Tools,
	})
}
