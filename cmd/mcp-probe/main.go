// Command mcp-probe calls an askstream tool over streamable HTTP and prints
// progress notifications while the answer streams. It is a smoke test for
// a deployed server.
//
// Usage:
//
//	mcp-probe [tool] <question>
//
// Configuration:
//
//	PROBE_URL     - MCP endpoint (default: http://localhost:8080/mcp)
//	PROBE_API_KEY - Bearer token sent with every request (optional)
//	PROBE_TIMEOUT - Overall deadline (default: 5m)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(r)
}

func main() {
	if err := run(); err != nil {
		slog.Error("probe failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	tool, question := "perplexity_search", ""
	switch len(os.Args) {
	case 2:
		question = os.Args[1]
	case 3:
		tool, question = os.Args[1], os.Args[2]
	default:
		return fmt.Errorf("usage: %s [tool] <question>", os.Args[0])
	}

	endpoint := os.Getenv("PROBE_URL")
	if endpoint == "" {
		endpoint = "http://localhost:8080/mcp"
	}
	timeout := 5 * time.Minute
	if v := os.Getenv("PROBE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PROBE_TIMEOUT: %w", err)
		}
		timeout = d
	}

	httpClient := &http.Client{}
	if key := os.Getenv("PROBE_API_KEY"); key != "" {
		httpClient.Transport = bearerTransport{token: key, base: http.DefaultTransport}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "mcp-probe", Version: "v0.1.0"}, &mcp.ClientOptions{
		ProgressNotificationHandler: func(_ context.Context, req *mcp.ProgressNotificationClientRequest) {
			fmt.Fprint(os.Stderr, req.Params.Message)
		},
	})
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: httpClient,
	}, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", endpoint, err)
	}
	defer cs.Close()

	params := &mcp.CallToolParams{
		Name:      tool,
		Arguments: map[string]any{"query": question},
	}
	params.SetProgressToken("probe")

	start := time.Now()
	res, err := cs.CallTool(ctx, params)
	if err != nil {
		return fmt.Errorf("calling %s: %w", tool, err)
	}
	fmt.Fprintln(os.Stderr)

	if res.IsError {
		for _, c := range res.Content {
			if text, ok := c.(*mcp.TextContent); ok {
				return fmt.Errorf("tool error: %s", text.Text)
			}
		}
		return fmt.Errorf("tool error")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.StructuredContent); err != nil {
		return err
	}
	slog.Info("probe complete", "tool", tool, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
