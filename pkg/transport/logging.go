package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/askstream/pkg/observability"
)

// Logging returns middleware that emits a structured log entry for each
// request with method, path, status, duration and request ID. Probe and
// metrics endpoints log at debug level so scrapes do not flood the log.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := observability.NewStatusWriter(w)

			next.ServeHTTP(sw, r)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.Status()),
				slog.Duration("duration", time.Since(start)),
			}

			level := slog.LevelInfo
			switch {
			case sw.Status() >= http.StatusInternalServerError:
				level = slog.LevelError
			case quietPaths[r.URL.Path]:
				level = slog.LevelDebug
			}
			logger.LogAttrs(r.Context(), level, "request completed", attrs...)
		})
	}
}

var quietPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}
