package perplexity

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rhuss/askstream/pkg/api"
)

// MapHTTPError converts a non-2xx response received before the stream
// started into an *api.Error. Rejected session cookies are auth errors and
// 429 is reported as an upstream rate limit; everything else is a transport
// failure carrying the status.
func MapHTTPError(resp *http.Response) *api.Error {
	message := extractErrorMessage(resp.Body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if message == "" {
			message = "backend rejected the session credentials"
		}
		return api.NewAuthError(api.CodeInvalidToken, message)

	case http.StatusTooManyRequests:
		if message == "" {
			message = "backend rate limit exceeded"
		}
		return api.NewUpstreamError(api.CodeRateLimited, message)

	default:
		if message == "" {
			message = fmt.Sprintf("unexpected backend status (HTTP %d)", resp.StatusCode)
		}
		return api.NewTransportError(api.CodeHTTPStatus, message, fmt.Errorf("HTTP %d", resp.StatusCode))
	}
}

// MapNetworkError converts a connection-level failure (refused, DNS, TLS)
// into a transport error.
func MapNetworkError(err error) *api.Error {
	return api.NewTransportError(api.CodeConnection, "backend connection error: "+err.Error(), err)
}

// extractErrorMessage reads at most 4 KiB of an error body and returns a
// human readable message from common JSON shapes, or a short plain-text
// body verbatim.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var shaped struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &shaped) == nil {
		for _, m := range []string{shaped.Error.Message, shaped.Message, shaped.Detail} {
			if m != "" {
				return m
			}
		}
		return ""
	}

	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "<") || len(text) > 200 {
		return ""
	}
	return text
}
