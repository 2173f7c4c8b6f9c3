// Package debug provides category-scoped debug logging.
//
// Categories select WHAT is logged (ASKSTREAM_DEBUG, comma separated) and the
// level selects HOW MUCH (ASKSTREAM_LOG_LEVEL). Environment values override
// configuration.
//
//	debug.Log("stream", "frame decoded", "kind", ev.Type)
//	if debug.Enabled("transport") { /* expensive formatting */ }
//
// Categories: engine, stream, provider, tools, storage, auth, transport, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// Environment variables read by Init.
const (
	EnvCategories = "ASKSTREAM_DEBUG"
	EnvLevel      = "ASKSTREAM_LOG_LEVEL"
	EnvFormat     = "ASKSTREAM_LOG_FORMAT"
)

// LevelTrace is below slog.LevelDebug. At TRACE, raw frames and request
// bodies are logged.
const LevelTrace = slog.LevelDebug - 4

var categories atomic.Pointer[map[string]bool]

func init() {
	setCategories(parseCategories(os.Getenv(EnvCategories)))
}

// Options configures Init. Zero values fall back to the environment and then
// to INFO level text output on stderr.
type Options struct {
	Categories string
	Level      string
	Format     string // "text" or "json"
	Output     io.Writer
}

// Init installs the default slog logger and the enabled category set.
func Init(opts Options) {
	cats := envOr(EnvCategories, opts.Categories)
	setCategories(parseCategories(cats))

	level := ParseLevel(envOr(EnvLevel, opts.Level))
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(envOr(EnvFormat, opts.Format), "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setCategories(m map[string]bool) {
	categories.Store(&m)
}

// Enabled reports whether debug output is active for category.
func Enabled(category string) bool {
	m := *categories.Load()
	return m["all"] || m[category]
}

// Log emits a debug record tagged with category. No-op when disabled.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a TRACE record tagged with category.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE output would be emitted for category.
func TraceIsEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// Raw writes text to stderr unformatted, only at TRACE for an enabled category.
func Raw(category string, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the enabled categories in sorted order.
func Categories() []string {
	m := *categories.Load()
	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// Truncate shortens s to maxLen bytes and appends "..." when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
