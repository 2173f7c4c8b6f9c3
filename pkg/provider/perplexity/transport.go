package perplexity

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/auth"
	"github.com/rhuss/askstream/pkg/debug"
	"github.com/rhuss/askstream/pkg/provider"
)

// HTTPTransport opens backend streams over net/http.
type HTTPTransport struct {
	baseURL       string
	userAgent     string
	warmUpTimeout time.Duration
	client        *http.Client
	stream        *http.Client
}

var _ provider.Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport for cfg.BaseURL.
func NewHTTPTransport(cfg Config) *HTTPTransport {
	cfg.applyDefaults()
	return &HTTPTransport{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:     cfg.UserAgent,
		warmUpTimeout: cfg.WarmUpTimeout,
		client:        cfg.HTTPClient,
		// Streams are bounded by their context, never by a client timeout.
		stream: &http.Client{
			Transport:     cfg.HTTPClient.Transport,
			CheckRedirect: cfg.HTTPClient.CheckRedirect,
			Jar:           cfg.HTTPClient.Jar,
		},
	}
}

// OpenStream sends req with creds attached and returns the response body
// once a 2xx status arrived. Credentials are checked before any network
// activity.
func (t *HTTPTransport) OpenStream(ctx context.Context, req *provider.WireRequest, creds *auth.Credentials) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.baseURL+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return nil, api.NewTransportError(api.CodeConnection, "failed to create HTTP request", err)
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	if err := creds.Apply(httpReq); err != nil {
		return nil, err
	}

	debug.Log("transport", "opening stream", "method", req.Method, "url", httpReq.URL.String(), "body_bytes", len(req.Body))
	if debug.TraceIsEnabled("transport") {
		debug.Raw("transport", string(req.Body))
	}

	resp, err := t.stream.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, MapNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, MapHTTPError(resp)
	}

	debug.Log("transport", "stream opened", "status", resp.StatusCode, "content_type", resp.Header.Get("Content-Type"))
	return resp.Body, nil
}

// WarmUp fetches the session endpoint with creds attached. The browser does
// this before its first query; the backend may refresh cookies in response.
func (t *HTTPTransport) WarmUp(ctx context.Context, creds *auth.Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, t.warmUpTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+SessionPath, nil)
	if err != nil {
		return api.NewTransportError(api.CodeConnection, "failed to create HTTP request", err)
	}
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	if err := creds.Apply(httpReq); err != nil {
		return err
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return MapNetworkError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return MapHTTPError(resp)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	debug.Log("transport", "session warm-up complete", "status", resp.StatusCode)
	return nil
}
