package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/auth"
	"github.com/rhuss/askstream/pkg/debug"
	"github.com/rhuss/askstream/pkg/observability"
	"github.com/rhuss/askstream/pkg/tools"
)

// Config holds HTTP serving settings.
type Config struct {
	Addr              string
	MCPPath           string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Metrics           bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		MCPPath:           "/mcp",
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		Metrics:           true,
	}
}

// Checker reports whether a dependency is ready. storage.ThreadStore
// implements it.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithAuth installs authentication middleware. It runs after logging and
// metrics so rejected requests are still recorded.
func WithAuth(mw Middleware) Option {
	return func(s *Server) { s.auth = mw }
}

// WithReadinessCheck adds a named check to /readyz.
func WithReadinessCheck(name string, c Checker) Option {
	return func(s *Server) {
		if c != nil {
			s.checks = append(s.checks, namedCheck{name: name, Checker: c})
		}
	}
}

// WithShutdownHook registers a function that runs when shutdown begins,
// before in-flight requests are drained. Use it to abort running queries.
func WithShutdownHook(fn func()) Option {
	return func(s *Server) { s.onShutdown = append(s.onShutdown, fn) }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

type namedCheck struct {
	name string
	Checker
}

// Server serves the MCP tools over streamable HTTP and manages the full
// lifecycle including graceful shutdown.
type Server struct {
	tools      *tools.Server
	cfg        Config
	auth       Middleware
	checks     []namedCheck
	onShutdown []func()
	logger     *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
}

// NewServer creates an HTTP server for the given tool server.
func NewServer(toolServer *tools.Server, cfg Config, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MCPPath == "" {
		cfg.MCPPath = def.MCPPath
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = def.ReadHeaderTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	s := &Server{
		tools:  toolServer,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// Handler returns the root handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Each session gets a server bound to the identity that opened it.
	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		id := auth.IdentityFromContext(r.Context())
		debug.Log("transport", "new MCP session", "subject", id.Owner())
		return s.tools.MCPServer(id)
	}, nil)
	mux.Handle(s.cfg.MCPPath, mcpHandler)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.cfg.Metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return Chain(
		Recovery(),
		RequestID(),
		Logging(s.logger),
		observability.MetricsMiddleware,
		s.auth,
	)(mux)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var errs []error
	for _, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("readiness check failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, errorResponse{Error: &api.Error{Kind: "unavailable", Message: err.Error()}})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ready\n"))
}

// ListenAndServe starts the server and blocks until ctx is done. It then
// shuts down gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("mcp_path", s.cfg.MCPPath),
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown runs the shutdown hooks, then drains in-flight requests until
// ctx expires and closes remaining connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		for _, fn := range s.onShutdown {
			fn()
		}
	})

	s.logger.Info("shutting down gracefully")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		// Long-lived MCP streams keep requests open; cut them off.
		s.logger.Warn("graceful shutdown incomplete, closing connections", slog.String("error", err.Error()))
		return s.httpServer.Close()
	}
	s.logger.Info("server stopped")
	return nil
}

// ServeStdio runs a single MCP session over stdin and stdout until the
// client disconnects or ctx is done. Nothing else may write to stdout.
func ServeStdio(ctx context.Context, toolServer *tools.Server) error {
	slog.Info("serving MCP over stdio", "tools", toolServer.Tools())
	err := toolServer.MCPServer(nil).Run(ctx, &mcp.StdioTransport{})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
