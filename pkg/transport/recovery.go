package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/rhuss/askstream/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to 500 responses. The server continues to accept new
// requests after a panic is recovered. http.ErrAbortHandler is re-raised.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic in handler",
					"request_id", RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				WriteError(w, &api.Error{
					Kind:    "internal",
					Message: fmt.Sprintf("internal server error: %v", rec),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
