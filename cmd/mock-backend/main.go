// Command mock-backend runs a deterministic answer backend for local
// development and end-to-end testing. It streams predictable answers over
// the same SSE protocol as the real service.
//
// Query text markers select failure scenarios: "[error]" ends the stream
// with an upstream error, "[no-done]" omits the terminal event and
// "[unauthorized]" answers 401.
//
// Configuration:
//
//	MOCK_PORT      - Listen port (default: 9090)
//	MOCK_SNAPSHOTS - Send cumulative message frames when "true"
//	MOCK_DELAY     - Pause between frames, e.g. "50ms"
//	MOCK_ANONYMOUS - Skip the session cookie check when "true"
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuss/askstream/pkg/provider/perplexity/perplexitytest"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	opts := perplexitytest.Options{
		Snapshots:      os.Getenv("MOCK_SNAPSHOTS") == "true",
		AllowAnonymous: os.Getenv("MOCK_ANONYMOUS") == "true",
	}
	if v := os.Getenv("MOCK_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid MOCK_DELAY", "value", v, "error", err)
			os.Exit(1)
		}
		opts.Delay = d
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           perplexitytest.NewHandler(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "snapshots", opts.Snapshots, "delay", opts.Delay)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
