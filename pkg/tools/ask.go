package tools

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/auth"
	"github.com/rhuss/askstream/pkg/debug"
	"github.com/rhuss/askstream/pkg/engine"
	"github.com/rhuss/askstream/pkg/storage"
)

// AskInput is the argument object of the search tools.
type AskInput struct {
	Query    string         `json:"query" jsonschema:"The question to ask"`
	Sources  []string       `json:"sources,omitempty" jsonschema:"Sources to search: web, scholar or social. Defaults to web"`
	Language string         `json:"language,omitempty" jsonschema:"Answer language as a BCP 47 tag. Defaults to en-US"`
	Model    string         `json:"model,omitempty" jsonschema:"Optional backend model for this tier"`
	ThreadID string         `json:"thread_id,omitempty" jsonschema:"Continue the conversation stored under this thread"`
	FollowUp *FollowUpInput `json:"follow_up,omitempty" jsonschema:"Continue the conversation identified by a follow_up object from an earlier answer"`
}

// FollowUpInput is a follow_up object passed back by the client.
type FollowUpInput struct {
	BackendUUID string   `json:"backend_uuid" jsonschema:"The backend_uuid of the earlier answer"`
	Attachments []string `json:"attachments,omitempty"`
}

// AskOutput is the structured result of the search tools.
type AskOutput struct {
	Answer     string                  `json:"answer"`
	WebResults []api.WebResult         `json:"web_results"`
	FollowUp   *api.ConversationHandle `json:"follow_up"`
	ThreadID   string                  `json:"thread_id,omitempty"`
}

func (s *Server) askHandler(tool string, tier api.ModelTier, id *auth.Identity) mcp.ToolHandlerFor[AskInput, AskOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
		start := time.Now()
		out, err := s.ask(scope(ctx, id), req, tier, in)
		status := recordCall(tool, err)

		debug.Log("tools", "tool call finished",
			"tool", tool,
			"status", status,
			"thread_id", out.ThreadID,
			"elapsed", time.Since(start),
		)
		if err != nil {
			return nil, AskOutput{}, err
		}
		return nil, out, nil
	}
}

func (s *Server) ask(ctx context.Context, req *mcp.CallToolRequest, tier api.ModelTier, in AskInput) (AskOutput, error) {
	sources, verr := api.ParseSources(in.Sources)
	if verr != nil {
		return AskOutput{}, verr
	}

	handle, thread, err := s.resolveHandle(ctx, in)
	if err != nil {
		return AskOutput{}, err
	}

	q := api.Query{
		Text:      in.Query,
		Sources:   sources,
		Language:  in.Language,
		Tier:      tier,
		Model:     in.Model,
		Incognito: s.opts.Incognito,
	}

	var opts []engine.RunOption
	if req != nil && req.Session != nil && req.Params != nil {
		if token := req.Params.GetProgressToken(); token != nil {
			p := startProgress(ctx, req.Session, token)
			defer p.stop()
			opts = append(opts, engine.WithEventHook(p.hook))
		}
	}

	resp, err := s.runner.Run(ctx, q, s.opts.Credentials, handle, opts...)
	if err != nil {
		return AskOutput{}, err
	}

	out := AskOutput{
		Answer:     resp.Answer,
		WebResults: resp.WebResults,
		FollowUp:   resp.FollowUp,
	}
	if out.WebResults == nil {
		out.WebResults = []api.WebResult{}
	}
	out.ThreadID = s.recordThread(ctx, thread, resp.FollowUp, in.Query)
	return out, nil
}

// resolveHandle turns thread_id or follow_up into the handle that
// continues a conversation. It returns the stored thread when thread_id
// was used.
func (s *Server) resolveHandle(ctx context.Context, in AskInput) (*api.ConversationHandle, *storage.Thread, error) {
	switch {
	case in.ThreadID != "" && in.FollowUp != nil:
		return nil, nil, api.NewValidationError(api.CodeInvalidFollowUp, "thread_id and follow_up are mutually exclusive")

	case in.FollowUp != nil:
		if in.FollowUp.BackendUUID == "" {
			return nil, nil, api.NewValidationError(api.CodeInvalidFollowUp, "follow_up.backend_uuid must not be empty")
		}
		h := api.ConversationHandle{BackendID: in.FollowUp.BackendUUID, Attachments: in.FollowUp.Attachments}
		return h.Clone(), nil, nil

	case in.ThreadID != "":
		if s.opts.Threads == nil {
			return nil, nil, api.NewValidationError(api.CodeInvalidThread, "conversation threads are disabled on this server")
		}
		if !api.ValidateThreadID(in.ThreadID) {
			return nil, nil, api.NewValidationError(api.CodeInvalidThread, "malformed thread_id "+in.ThreadID)
		}
		thread, err := s.opts.Threads.GetThread(ctx, in.ThreadID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, api.NewValidationError(api.CodeUnknownThread, "no thread "+in.ThreadID)
		}
		if err != nil {
			return nil, nil, err
		}
		return thread.Handle.Clone(), thread, nil
	}
	return nil, nil, nil
}

// recordThread saves the follow-up handle of a completed run and returns
// the thread ID. A storage failure does not fail the run; the answer is
// returned without a thread_id.
func (s *Server) recordThread(ctx context.Context, thread *storage.Thread, handle *api.ConversationHandle, query string) string {
	if s.opts.Threads == nil || handle == nil {
		if thread != nil {
			return thread.ID
		}
		return ""
	}

	if thread != nil {
		if _, err := s.opts.Threads.AppendTurn(ctx, thread.ID, *handle, query); err != nil {
			slog.Warn("failed to update thread", "thread_id", thread.ID, "error", err)
			return ""
		}
		return thread.ID
	}

	t := &storage.Thread{
		ID:        api.NewThreadID(),
		Handle:    *handle.Clone(),
		LastQuery: query,
	}
	if err := s.opts.Threads.CreateThread(ctx, t); err != nil {
		slog.Warn("failed to create thread", "error", err)
		return ""
	}
	return t.ID
}
