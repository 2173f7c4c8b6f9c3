package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/config"
	"github.com/rhuss/askstream/pkg/engine"
	"github.com/rhuss/askstream/pkg/provider"
)

func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Run one query and print the final response as JSON",
		ArgsUsage: "<question>",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{
				Name:    "tier",
				Aliases: []string{"t"},
				Value:   string(api.ModelTierQuick),
				Usage:   "Model tier: quick, research, reasoning",
			},
			&cli.StringSliceFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Search source (repeatable): web, scholar, social",
			},
			&cli.StringFlag{
				Name:  "language",
				Usage: "Answer locale such as en-US",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Pin a model within the tier",
			},
			&cli.StringFlag{
				Name:  "follow-up",
				Usage: "Continue the conversation with this backend_uuid",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Override backend.timeout for this query",
			},
			&cli.BoolFlag{
				Name:  "stream",
				Usage: "Echo answer text to stderr while it streams",
			},
		},
		Action: askAction,
	}
}

func askAction(c *cli.Context) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return cli.Exit("a question is required", exitFailure)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	setupLogging(cfg.Logging)

	q, err := buildQuery(text, c.String("tier"), c.StringSlice("source"), c.String("language"), c.String("model"))
	if err != nil {
		return cli.Exit(err.Error(), exitQueryFailed)
	}
	q.Incognito = cfg.Backend.Incognito

	var handle *api.ConversationHandle
	if id := c.String("follow-up"); id != "" {
		handle = &api.ConversationHandle{BackendID: id}
	}

	var opts []engine.RunOption
	if c.IsSet("timeout") {
		opts = append(opts, engine.WithTimeout(c.Duration("timeout")))
	}
	if c.Bool("stream") {
		opts = append(opts, engine.WithEventHook(echoHook(c.App.ErrWriter)))
	}

	b, err := newBackend(cfg.Backend)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return ask(ctx, b, q, handle, c.App.Writer, opts...)
}

func ask(ctx context.Context, b *backend, q api.Query, handle *api.ConversationHandle, out io.Writer, opts ...engine.RunOption) error {
	resp, err := b.engine.Run(ctx, q, b.creds, handle, opts...)
	if err != nil {
		return cli.Exit(err.Error(), exitQueryFailed)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

func buildQuery(text, tier string, sources []string, language, model string) (api.Query, error) {
	t, ok := api.ParseModelTier(tier)
	if !ok {
		return api.Query{}, api.NewValidationError(api.CodeInvalidModelTier, fmt.Sprintf("unknown model tier %q", tier))
	}
	srcs, perr := api.ParseSources(sources)
	if perr != nil {
		return api.Query{}, perr
	}
	return api.Query{
		Text:     text,
		Sources:  srcs,
		Language: language,
		Tier:     t,
		Model:    model,
	}, nil
}

func echoHook(w io.Writer) engine.EventHook {
	return func(_ string, ev provider.Event) {
		switch ev.Type {
		case provider.EventTextDelta:
			fmt.Fprint(w, ev.Text)
		case provider.EventDone:
			fmt.Fprintln(w)
		}
	}
}
