// Package integration provides end-to-end tests for the askstream server.
//
// Tests run against a real askstream HTTP server backed by the mock answer
// backend, both started in-process using net/http/httptest, and talk to it
// with an MCP client over streamable HTTP.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/askstream/pkg/auth"
	"github.com/rhuss/askstream/pkg/auth/apikey"
	"github.com/rhuss/askstream/pkg/engine"
	"github.com/rhuss/askstream/pkg/provider/perplexity"
	"github.com/rhuss/askstream/pkg/provider/perplexity/perplexitytest"
	"github.com/rhuss/askstream/pkg/storage/memory"
	"github.com/rhuss/askstream/pkg/tools"
	"github.com/rhuss/askstream/pkg/transport"
)

// API keys accepted by the test server.
const (
	aliceKey = "sk-alice"
	bobKey   = "sk-bob"
)

// testEnv holds the shared servers for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the askstream server and mock backend for testing.
type TestEnvironment struct {
	Server      *httptest.Server
	MockBackend *httptest.Server
	Engine      *engine.Engine
}

// TestMain starts the mock backend and askstream server before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

// setupTestEnvironment creates a mock backend and an askstream server wired to it.
func setupTestEnvironment() *TestEnvironment {
	mockBackend := httptest.NewServer(perplexitytest.NewHandler(perplexitytest.Options{}))

	pcfg := perplexity.Config{BaseURL: mockBackend.URL}
	eng, err := engine.New(perplexity.New(pcfg), perplexity.NewHTTPTransport(pcfg), engine.Config{
		Timeout:     10 * time.Second,
		IdleTimeout: 5 * time.Second,
	})
	if err != nil {
		panic(fmt.Sprintf("creating engine: %v", err))
	}

	toolServer, err := tools.New(eng, tools.Options{
		Name:        "askstream-integration",
		Credentials: auth.NewCredentials("sess", "csrf"),
		Threads:     memory.New(100),
		Incognito:   true,
	})
	if err != nil {
		panic(fmt.Sprintf("creating tool server: %v", err))
	}

	chain := &auth.Chain{
		Authenticators: []auth.Authenticator{apikey.New([]apikey.Key{
			{Key: aliceKey, Identity: auth.Identity{Subject: "alice"}},
			{Key: bobKey, Identity: auth.Identity{Subject: "bob"}},
		})},
		DefaultDecision: auth.No,
	}
	srv := transport.NewServer(toolServer, transport.Config{Metrics: true},
		transport.WithAuth(auth.Middleware(chain, nil, auth.DefaultBypassEndpoints)),
		transport.WithShutdownHook(func() { eng.CancelAll() }),
	)

	return &TestEnvironment{
		Server:      httptest.NewServer(srv.Handler()),
		MockBackend: mockBackend,
		Engine:      eng,
	}
}

// Teardown stops both servers.
func (env *TestEnvironment) Teardown() {
	if env.Server != nil {
		env.Server.Close()
	}
	if env.MockBackend != nil {
		env.MockBackend.Close()
	}
}

// BaseURL returns the askstream server base URL.
func (env *TestEnvironment) BaseURL() string {
	return env.Server.URL
}

// --- MCP helpers ---

type bearerTransport struct{ token string }

func (b bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(r)
}

// connect opens an MCP session authenticated with apiKey.
func connect(t *testing.T, apiKey string, opts *mcp.ClientOptions) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "integration", Version: "v0.0.1"}, opts)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   testEnv.BaseURL() + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{token: apiKey}},
	}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

// callTool calls a tool and returns its result. Protocol errors fail the test.
func callTool(t *testing.T, cs *mcp.ClientSession, params *mcp.CallToolParams) *mcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := cs.CallTool(ctx, params)
	if err != nil {
		t.Fatalf("CallTool(%s): %v", params.Name, err)
	}
	return res
}

// ask calls tool with args and decodes a successful result.
func ask(t *testing.T, cs *mcp.ClientSession, tool string, args map[string]any) tools.AskOutput {
	t.Helper()
	res := callTool(t, cs, &mcp.CallToolParams{Name: tool, Arguments: args})
	if res.IsError {
		t.Fatalf("%s returned tool error: %s", tool, errorText(res))
	}
	return decode[tools.AskOutput](t, res)
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var out T
	data, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshaling structured content: %v", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decoding structured content %s: %v", data, err)
	}
	return out
}

func errorText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

// --- HTTP helpers ---

// getURL sends a GET request and returns the response.
func getURL(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

// readBody reads and closes the response body.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(data)
}
