package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rhuss/askstream/pkg/api"
)

// HTTPStatusFromError maps an error kind to the corresponding HTTP status
// code. Unknown kinds map to 500.
func HTTPStatusFromError(err *api.Error) int {
	switch err.Kind {
	case api.ErrorKindValidation:
		return http.StatusBadRequest
	case api.ErrorKindAuth:
		return http.StatusUnauthorized
	case api.ErrorKindTimeout:
		return http.StatusGatewayTimeout
	case api.ErrorKindCancelled:
		return 499
	case api.ErrorKindUpstream:
		if err.Code == api.CodeRateLimited {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	case api.ErrorKindProtocol, api.ErrorKindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is the JSON body of an error response.
type errorResponse struct {
	Error *api.Error `json:"error"`
}

// WriteError writes err as a JSON error response with the status derived
// from its kind.
func WriteError(w http.ResponseWriter, err *api.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatusFromError(err))
	writeJSON(w, errorResponse{Error: err})
}

func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response body", "error", err)
	}
}
