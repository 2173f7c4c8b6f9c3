package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/auth"
	"github.com/rhuss/askstream/pkg/auth/apikey"
	"github.com/rhuss/askstream/pkg/engine"
	"github.com/rhuss/askstream/pkg/storage/memory"
	"github.com/rhuss/askstream/pkg/tools"
)

type staticRunner struct{}

func (staticRunner) Run(context.Context, api.Query, *auth.Credentials, *api.ConversationHandle, ...engine.RunOption) (*api.FinalResponse, error) {
	return &api.FinalResponse{
		Answer:   "Paris is the capital.",
		FollowUp: &api.ConversationHandle{BackendID: "b-1"},
	}, nil
}

type failingCheck struct{ err error }

func (f failingCheck) HealthCheck(context.Context) error { return f.err }

func newToolServer(t *testing.T) *tools.Server {
	t.Helper()
	ts, err := tools.New(staticRunner{}, tools.Options{
		Credentials: auth.NewCredentials("s", "c"),
		Threads:     memory.New(0),
	})
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func authMiddleware() Middleware {
	chain := &auth.Chain{
		Authenticators: []auth.Authenticator{
			apikey.New([]apikey.Key{{Key: "secret-key", Identity: auth.Identity{Subject: "alice"}}}),
		},
		DefaultDecision: auth.No,
	}
	return Middleware(auth.Middleware(chain, nil, auth.DefaultBypassEndpoints))
}

// bearerTransport adds an API key to every request.
type bearerTransport struct{ token string }

func (b bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(r)
}

func TestServer_Probes(t *testing.T) {
	s := NewServer(newToolServer(t), Config{Metrics: true}, WithAuth(authMiddleware()))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200 without credentials", path, resp.StatusCode)
		}
		if resp.Header.Get(RequestIDHeader) == "" {
			t.Errorf("GET %s has no %s header", path, RequestIDHeader)
		}
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	s := NewServer(newToolServer(t), Config{Metrics: false})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /metrics = %d, want 404", resp.StatusCode)
	}
}

func TestServer_ReadinessFailure(t *testing.T) {
	s := NewServer(newToolServer(t), Config{},
		WithReadinessCheck("threads", memory.New(0)),
		WithReadinessCheck("database", failingCheck{err: errors.New("connection refused")}),
	)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("GET /readyz = %d, want 503", resp.StatusCode)
	}
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body.Error.Message, "database: connection refused") {
		t.Errorf("message = %q", body.Error.Message)
	}
}

func TestServer_MCPRequiresAuth(t *testing.T) {
	s := NewServer(newToolServer(t), Config{}, WithAuth(authMiddleware()))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/mcp", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("POST /mcp = %d, want 401", resp.StatusCode)
	}
}

func TestServer_MCPOverStreamableHTTP(t *testing.T) {
	s := NewServer(newToolServer(t), Config{}, WithAuth(authMiddleware()))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   ts.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{token: "secret-key"}},
	}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.ToolSearch,
		Arguments: map[string]any{"query": "capital of France?"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %+v", res.Content)
	}

	b, _ := json.Marshal(res.StructuredContent)
	var out tools.AskOutput
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "Paris is the capital." || out.ThreadID == "" {
		t.Errorf("output = %+v", out)
	}

	// The thread belongs to the authenticated subject.
	list, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: tools.ToolListThreads, Arguments: map[string]any{}})
	if err != nil || list.IsError {
		t.Fatalf("list_threads: %v %+v", err, list)
	}
	b, _ = json.Marshal(list.StructuredContent)
	var threads tools.ListThreadsOutput
	json.Unmarshal(b, &threads)
	if len(threads.Threads) != 1 || threads.Threads[0].ThreadID != out.ThreadID {
		t.Errorf("threads = %+v", threads.Threads)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	var hookCalls atomic.Int32
	s := NewServer(newToolServer(t), Config{ShutdownTimeout: time.Second},
		WithShutdownHook(func() { hookCalls.Add(1) }),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if hookCalls.Load() != 1 {
		t.Errorf("shutdown hook called %d times, want 1", hookCalls.Load())
	}
}
