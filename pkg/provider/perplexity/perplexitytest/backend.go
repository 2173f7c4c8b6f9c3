// Package perplexitytest provides a deterministic stand-in for the answer
// backend. It speaks the same SSE protocol as the real service and is used
// by tests and by the mock-backend command.
package perplexitytest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/auth"
	"github.com/rhuss/askstream/pkg/provider/perplexity"
)

// Magic markers in the query text that select a failure scenario.
const (
	// MarkerError makes the backend end the stream with an error event.
	MarkerError = "[error]"

	// MarkerNoDone makes the backend close the stream without a terminal event.
	MarkerNoDone = "[no-done]"

	// MarkerUnauthorized makes the backend answer 401 regardless of cookies.
	MarkerUnauthorized = "[unauthorized]"
)

var namespace = uuid.MustParse("9c1f6a52-7e43-4f0e-8d6b-2f3a1c5e7b90")

// Options tunes the fake backend.
type Options struct {
	// Snapshots sends cumulative "message" frames instead of text deltas.
	Snapshots bool

	// Delay is slept between frames.
	Delay time.Duration

	// AllowAnonymous skips the session cookie check.
	AllowAnonymous bool
}

// Request is the decoded part of an ask request the fake backend acts on.
type Request struct {
	Query  string `json:"query_str"`
	Params struct {
		Attachments     []string `json:"attachments"`
		LastBackendUUID string   `json:"last_backend_uuid"`
		Mode            string   `json:"mode"`
		ModelPreference string   `json:"model_preference"`
		Sources         []string `json:"sources"`
		IsIncognito     bool     `json:"is_incognito"`
	} `json:"params"`
}

// NewHandler returns an http.Handler serving the ask and session endpoints.
func NewHandler(opts Options) http.Handler {
	b := &backend{opts: opts}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+perplexity.AskPath, b.handleAsk)
	mux.HandleFunc("GET "+perplexity.SessionPath, b.handleSession)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

type backend struct {
	opts Options
}

func (b *backend) authorized(r *http.Request) bool {
	if b.opts.AllowAnonymous {
		return true
	}
	c, err := r.Cookie(auth.SessionCookieName)
	return err == nil && c.Value != ""
}

func (b *backend) handleSession(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"user":{"id":"mock"}}`))
}

func (b *backend) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !b.authorized(r) || strings.Contains(req.Query, MarkerUnauthorized) {
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	frames := Script(req, b.opts.Snapshots)
	for _, f := range frames {
		if b.opts.Delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(b.opts.Delay):
			}
		}
		if _, err := w.Write([]byte(f)); err != nil {
			slog.Debug("mock backend write failed", "error", err)
			return
		}
		flusher.Flush()
	}
}

// Answer returns the deterministic answer text for a request.
func Answer(req Request) string {
	q := strings.TrimSpace(req.Query)
	if req.Params.LastBackendUUID != "" {
		return fmt.Sprintf("Following up on %s: %s", req.Params.LastBackendUUID, q)
	}
	return fmt.Sprintf("Answer (%s/%s): %s", req.Params.Mode, req.Params.ModelPreference, q)
}

// BackendUUID returns the deterministic follow-up ID issued for a request.
func BackendUUID(req Request) string {
	return uuid.NewSHA1(namespace, []byte(req.Params.LastBackendUUID+"\x00"+req.Query)).String()
}

// Script returns the SSE frames the backend sends for req, in order.
func Script(req Request, snapshots bool) []string {
	frames := []string{": ping\n\n"}

	answer := Answer(req)
	results := []api.WebResult{{
		Name:    "Mock result",
		URL:     "https://example.com/" + uuid.NewSHA1(namespace, []byte(req.Query)).String()[:8],
		Snippet: req.Query,
	}}
	handle := api.ConversationHandle{BackendID: BackendUUID(req), Attachments: req.Params.Attachments}

	if snapshots {
		words := strings.SplitAfter(answer, " ")
		for i := range words {
			frames = append(frames, frame("message", map[string]any{
				"answer":       strings.Join(words[:i+1], ""),
				"backend_uuid": handle.BackendID,
				"attachments":  handle.Attachments,
			}))
		}
		frames = append(frames, frame("message", map[string]any{
			"answer":      answer,
			"web_results": results,
		}))
	} else {
		for _, w := range strings.SplitAfter(answer, " ") {
			frames = append(frames, frame("text_delta", map[string]string{"text": w}))
		}
		frames = append(frames,
			frame("citations", map[string]any{"entries": results}),
			frame("follow_up", handle),
		)
	}

	switch {
	case strings.Contains(req.Query, MarkerError):
		frames = append(frames, frame("error", map[string]string{"code": "rate_limited", "message": "mock rate limit"}))
	case strings.Contains(req.Query, MarkerNoDone):
	default:
		frames = append(frames, "event: done\ndata: {}\n\n")
	}
	return frames
}

func frame(event string, payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("perplexitytest: marshal %s frame: %v", event, err))
	}
	return "event: " + event + "\ndata: " + string(data) + "\n\n"
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": msg}})
}
