package provider

import (
	"context"
	"io"
	"net/http"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/auth"
)

// WireRequest is a fully serialized backend request. Path is relative to
// the transport's base URL.
type WireRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Protocol encodes queries and decodes event streams for one backend.
//
// Implementations must be safe for concurrent use. Readers returned by
// NewEventReader are not: each run owns its reader.
type Protocol interface {
	// Name returns the backend identifier (e.g., "perplexity").
	Name() string

	// BuildRequest validates q and serializes it, embedding handle when
	// the query continues an earlier conversation. Identical inputs must
	// produce byte-identical bodies.
	BuildRequest(q api.Query, handle *api.ConversationHandle) (*WireRequest, error)

	// NewEventReader wraps a response body in a frame decoder.
	NewEventReader(body io.Reader) EventReader
}

// Transport opens a streaming connection for a WireRequest.
//
// The returned body is owned by the caller and must be closed on every exit
// path. Closing it from another goroutine must unblock a pending Read.
type Transport interface {
	OpenStream(ctx context.Context, req *WireRequest, creds *auth.Credentials) (io.ReadCloser, error)
}

// EventReader yields decoded events one at a time.
//
// Next returns io.EOF once the stream is exhausted. Any other error is a
// transport read failure; it is returned after any event the reader could
// still salvage from buffered bytes. A reader is not restartable.
type EventReader interface {
	Next() (Event, error)
}
