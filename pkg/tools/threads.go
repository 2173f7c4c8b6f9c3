package tools

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/auth"
	"github.com/rhuss/askstream/pkg/storage"
)

// ListThreadsInput pages through stored threads.
type ListThreadsInput struct {
	Limit int    `json:"limit,omitempty" jsonschema:"Page size, 1 to 100. Defaults to 20"`
	After string `json:"after,omitempty" jsonschema:"Return threads after this thread_id"`
}

// ThreadSummary describes one stored thread.
type ThreadSummary struct {
	ThreadID    string `json:"thread_id"`
	BackendUUID string `json:"backend_uuid"`
	LastQuery   string `json:"last_query"`
	Turns       int    `json:"turns"`
	UpdatedAt   string `json:"updated_at"`
}

// ListThreadsOutput is one page of threads.
type ListThreadsOutput struct {
	Threads []ThreadSummary `json:"threads"`
	HasMore bool            `json:"has_more"`
}

// DeleteThreadInput names the thread to delete.
type DeleteThreadInput struct {
	ThreadID string `json:"thread_id" jsonschema:"The thread to delete"`
}

// DeleteThreadOutput confirms a deletion.
type DeleteThreadOutput struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) listThreadsHandler(id *auth.Identity) mcp.ToolHandlerFor[ListThreadsInput, ListThreadsOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in ListThreadsInput) (*mcp.CallToolResult, ListThreadsOutput, error) {
		list, err := s.opts.Threads.ListThreads(scope(ctx, id), storage.ListOptions{Limit: in.Limit, After: in.After})
		recordCall(ToolListThreads, err)
		if err != nil {
			return nil, ListThreadsOutput{}, err
		}

		out := ListThreadsOutput{Threads: []ThreadSummary{}, HasMore: list.HasMore}
		for _, t := range list.Data {
			out.Threads = append(out.Threads, ThreadSummary{
				ThreadID:    t.ID,
				BackendUUID: t.Handle.BackendID,
				LastQuery:   t.LastQuery,
				Turns:       t.Turns,
				UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil, out, nil
	}
}

func (s *Server) deleteThreadHandler(id *auth.Identity) mcp.ToolHandlerFor[DeleteThreadInput, DeleteThreadOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in DeleteThreadInput) (*mcp.CallToolResult, DeleteThreadOutput, error) {
		err := s.opts.Threads.DeleteThread(scope(ctx, id), in.ThreadID)
		if errors.Is(err, storage.ErrNotFound) {
			err = api.NewValidationError(api.CodeUnknownThread, "no thread "+in.ThreadID)
		}
		recordCall(ToolDeleteThread, err)
		if err != nil {
			return nil, DeleteThreadOutput{}, err
		}
		return nil, DeleteThreadOutput{Deleted: true}, nil
	}
}
