package perplexity

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/auth"
	"github.com/rhuss/askstream/pkg/provider"
)

var testCreds = auth.NewCredentials("sess-1", "csrf-1")

func wireRequest(t *testing.T) *provider.WireRequest {
	t.Helper()
	req, err := New(Config{}).BuildRequest(api.Query{Text: "hello"}, nil)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	return req
}

func TestOpenStream_SendsRequest(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != AskPath {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if c, err := r.Cookie(auth.SessionCookieName); err != nil || c.Value != "sess-1" {
			t.Errorf("session cookie = %v, %v", c, err)
		}
		if c, err := r.Cookie(auth.CSRFCookieName); err != nil || c.Value != "csrf-1" {
			t.Errorf("csrf cookie = %v, %v", c, err)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("User-Agent") != "askstream-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: done\n\n")
	}))
	defer srv.Close()

	tr := NewHTTPTransport(Config{BaseURL: srv.URL + "/", UserAgent: "askstream-test"})
	req := wireRequest(t)

	body, err := tr.OpenStream(context.Background(), req, testCreds)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "event: done\n\n" {
		t.Errorf("stream = %q", data)
	}
	if string(gotBody) != string(req.Body) {
		t.Errorf("server saw body %s, want %s", gotBody, req.Body)
	}
}

func TestOpenStream_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind api.ErrorKind
		wantCode string
		wantMsg  string
	}{
		{name: "unauthorized", status: 401, wantKind: api.ErrorKindAuth, wantCode: api.CodeInvalidToken},
		{name: "forbidden", status: 403, body: `{"detail":"bad session"}`, wantKind: api.ErrorKindAuth, wantCode: api.CodeInvalidToken, wantMsg: "bad session"},
		{name: "rate limited", status: 429, wantKind: api.ErrorKindUpstream, wantCode: api.CodeRateLimited},
		{name: "server error", status: 502, body: `{"error":{"message":"boom"}}`, wantKind: api.ErrorKindTransport, wantCode: api.CodeHTTPStatus, wantMsg: "boom"},
		{name: "html error page", status: 503, body: "<html>down</html>", wantKind: api.ErrorKindTransport, wantCode: api.CodeHTTPStatus, wantMsg: "unexpected backend status (HTTP 503)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewHTTPTransport(Config{BaseURL: srv.URL}).OpenStream(context.Background(), wireRequest(t), testCreds)

			var apiErr *api.Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *api.Error", err)
			}
			if apiErr.Kind != tt.wantKind || apiErr.Code != tt.wantCode {
				t.Errorf("got %s/%s, want %s/%s", apiErr.Kind, apiErr.Code, tt.wantKind, tt.wantCode)
			}
			if tt.wantMsg != "" && apiErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestOpenStream_MissingCredentialsSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(Config{BaseURL: srv.URL}).OpenStream(
		context.Background(), wireRequest(t), auth.NewCredentials("", "csrf"))
	if !errors.Is(err, &api.Error{Kind: api.ErrorKindAuth, Code: api.CodeMissingToken}) {
		t.Errorf("err = %v, want auth/missing_token", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server was contacted %d times", hits.Load())
	}
}

func TestOpenStream_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPTransport(Config{BaseURL: url}).OpenStream(context.Background(), wireRequest(t), testCreds)
	if !errors.Is(err, &api.Error{Kind: api.ErrorKindTransport, Code: api.CodeConnection}) {
		t.Errorf("err = %v, want transport/connection_error", err)
	}
}

func TestOpenStream_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPTransport(Config{BaseURL: srv.URL}).OpenStream(ctx, wireRequest(t), testCreds)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWarmUp(t *testing.T) {
	var path, session string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if c, err := r.Cookie(auth.SessionCookieName); err == nil {
			session = c.Value
		}
		io.WriteString(w, `{"user":{}}`)
	}))
	defer srv.Close()

	if err := NewHTTPTransport(Config{BaseURL: srv.URL}).WarmUp(context.Background(), testCreds); err != nil {
		t.Fatalf("WarmUp: %v", err)
	}
	if path != SessionPath || session != "sess-1" {
		t.Errorf("warm-up hit %s with session %q", path, session)
	}
}
