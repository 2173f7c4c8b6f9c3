package auth

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/rhuss/askstream/pkg/observability"
)

// Middleware creates HTTP middleware from a Chain and optional RateLimiter.
// It checks the bypass list, runs authentication, enforces rate limits and
// injects the identity into the request context.
func Middleware(chain *Chain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				observability.AuthRejectedTotal.WithLabelValues("unauthenticated").Inc()
				writeJSONError(w, http.StatusUnauthorized, "auth", "authentication required")
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				writeJSONError(w, http.StatusInternalServerError, "auth", "internal authentication error")
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"tier", result.Identity.Tier,
					)
					var le *LimitError
					if errors.As(err, &le) {
						w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(le.RetryAfter.Seconds()))))
					}
					observability.AuthRejectedTotal.WithLabelValues("rate_limited").Inc()
					writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
					return
				}
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"path", r.URL.Path,
			)

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), result.Identity)))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"kind":"` + kind + `","message":"` + message + `"}}`))
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}
