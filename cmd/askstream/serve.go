package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/rhuss/askstream/pkg/config"
	"github.com/rhuss/askstream/pkg/transport"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server over stdio or streamable HTTP",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{
				Name:  "transport",
				Usage: "Override server.transport: stdio or http",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override server.port",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	if c.IsSet("transport") {
		cfg.Server.Transport = c.String("transport")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	setupLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

func serve(ctx context.Context, cfg *config.Config) error {
	b, err := newBackend(cfg.Backend)
	if err != nil {
		return err
	}
	if cfg.Backend.WarmUp {
		b.warmUp(ctx)
	}

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	toolServer, err := newToolServer(cfg, b, store)
	if err != nil {
		return fmt.Errorf("creating tool server: %w", err)
	}

	if cfg.Server.Transport == config.TransportStdio {
		defer b.engine.CancelAll()
		return transport.ServeStdio(ctx, toolServer)
	}

	authMW, err := newAuthMiddleware(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring authentication: %w", err)
	}

	opts := []transport.Option{
		transport.WithAuth(authMW),
		transport.WithShutdownHook(func() {
			if n := b.engine.CancelAll(); n > 0 {
				slog.Info("cancelled in-flight queries", "count", n)
			}
		}),
	}
	if store != nil {
		opts = append(opts, transport.WithReadinessCheck("storage", store))
	}

	srv := transport.NewServer(toolServer, transport.Config{
		Addr:              cfg.Server.Addr(),
		MCPPath:           cfg.Server.MCPPath,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		Metrics:           cfg.Observability.Metrics.Enabled,
	}, opts...)

	slog.Info("askstream starting",
		"version", version,
		"transport", cfg.Server.Transport,
		"addr", cfg.Server.Addr(),
		"backend", cfg.Backend.BaseURL,
		"tools", toolServer.Tools(),
	)
	return srv.ListenAndServe(ctx)
}
