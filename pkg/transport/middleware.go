package transport

import "net/http"

// Middleware decorates the HTTP handler tree.
type Middleware func(http.Handler) http.Handler

// Chain(a, b, c) wraps as a(b(c(h))), so a sees the request first.
// Nil entries are skipped, which lets callers pass optional middleware
// such as an unset auth layer directly.
func Chain(middlewares ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if mw := middlewares[i]; mw != nil {
				h = mw(h)
			}
		}
		return h
	}
}
