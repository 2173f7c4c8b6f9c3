package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/auth"
	"github.com/rhuss/askstream/pkg/engine"
	"github.com/rhuss/askstream/pkg/observability"
	"github.com/rhuss/askstream/pkg/storage"
)

// Runner executes one query. *engine.Engine implements it.
type Runner interface {
	Run(ctx context.Context, q api.Query, creds *auth.Credentials, handle *api.ConversationHandle, opts ...engine.RunOption) (*api.FinalResponse, error)
}

// Options configures the MCP tool server.
type Options struct {
	// Name and Version are announced to clients during initialization.
	Name    string
	Version string

	// Credentials authenticate every backend request.
	Credentials *auth.Credentials

	// Threads stores conversation threads. Nil disables thread_id
	// support and the thread management tools.
	Threads storage.ThreadStore

	// Incognito keeps queries out of the backend account's history.
	Incognito bool

	// Tools limits the exposed tools. Empty exposes all of them.
	Tools []string
}

// Server builds MCP servers that expose the query engine as tools.
type Server struct {
	runner Runner
	opts   Options
	tools  []string
}

// New creates a tool server. It fails if runner is nil or the tool
// allowlist is invalid.
func New(runner Runner, opts Options) (*Server, error) {
	if runner == nil {
		return nil, errors.New("tools: runner must not be nil")
	}
	if opts.Name == "" {
		opts.Name = "askstream"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	enabled, err := EnabledTools(opts.Tools, opts.Threads != nil)
	if err != nil {
		return nil, err
	}

	return &Server{runner: runner, opts: opts, tools: enabled}, nil
}

// Tools returns the names of the exposed tools.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// MCPServer returns an MCP server with the enabled tools registered.
//
// Thread operations are scoped to id. A nil id falls back to the identity
// in the handler context, which is how stdio sessions run.
func (s *Server) MCPServer(id *auth.Identity) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: s.opts.Name, Version: s.opts.Version}, nil)

	for _, name := range s.tools {
		switch name {
		case ToolSearch:
			mcp.AddTool(srv, &mcp.Tool{
				Name:        ToolSearch,
				Description: "Quick web search. Returns a concise answer with the web results it is based on.",
			}, s.askHandler(ToolSearch, api.ModelTierQuick, id))
		case ToolResearch:
			mcp.AddTool(srv, &mcp.Tool{
				Name:        ToolResearch,
				Description: "Deep research across many sources. Slower than perplexity_search, returns a longer report.",
			}, s.askHandler(ToolResearch, api.ModelTierResearch, id))
		case ToolReason:
			mcp.AddTool(srv, &mcp.Tool{
				Name:        ToolReason,
				Description: "Search with a reasoning model for questions that need multi-step analysis.",
			}, s.askHandler(ToolReason, api.ModelTierReasoning, id))
		case ToolListThreads:
			mcp.AddTool(srv, &mcp.Tool{
				Name:        ToolListThreads,
				Description: "List stored conversation threads, most recently used first.",
			}, s.listThreadsHandler(id))
		case ToolDeleteThread:
			mcp.AddTool(srv, &mcp.Tool{
				Name:        ToolDeleteThread,
				Description: "Delete a stored conversation thread.",
			}, s.deleteThreadHandler(id))
		}
	}

	return srv
}

// scope attaches the thread owner to ctx.
func scope(ctx context.Context, id *auth.Identity) context.Context {
	if id == nil {
		id = auth.IdentityFromContext(ctx)
	}
	return storage.SetOwner(ctx, id.Owner())
}

// recordCall counts a tool invocation under the error kind, or "ok".
func recordCall(tool string, err error) string {
	status := "ok"
	if err != nil {
		status = string(api.KindOf(err))
		if status == "" {
			status = "error"
		}
	}
	observability.ToolCallsTotal.WithLabelValues(tool, status).Inc()
	return status
}
