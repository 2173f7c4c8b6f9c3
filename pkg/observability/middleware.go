package observability

import (
	"net/http"
	"strconv"
	"time"
)

// MetricsMiddleware records askstream_http_requests_total and
// askstream_http_request_duration_seconds for every request.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := NewStatusWriter(w)
		next.ServeHTTP(sw, r)

		HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.Status()/100)+"xx").Inc()
		HTTPRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// StatusWriter captures the status code written by the wrapped handler.
type StatusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// NewStatusWriter wraps w. The status defaults to 200.
func NewStatusWriter(w http.ResponseWriter) *StatusWriter {
	return &StatusWriter{ResponseWriter: w, status: http.StatusOK}
}

// Status returns the status code sent to the client.
func (w *StatusWriter) Status() int {
	return w.status
}

func (w *StatusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Flush keeps streamable HTTP responses from the MCP handler unbuffered.
func (w *StatusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
