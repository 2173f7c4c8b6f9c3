package engine

import (
	"time"

	"github.com/rhuss/askstream/pkg/provider"
)

// EventHook observes every event folded into a run, in arrival order, on
// the goroutine that drives the run. It must not block.
type EventHook func(runID string, ev provider.Event)

// RunOption customizes a single run.
type RunOption func(*runOptions)

type runOptions struct {
	runID       string
	timeout     time.Duration
	deadline    time.Time
	idleTimeout time.Duration
	hooks       []EventHook
}

// WithRunID sets the ID reported to hooks and logs and accepted by
// Engine.Cancel. By default a random UUID is used.
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// WithTimeout overrides the engine's run timeout.
func WithTimeout(d time.Duration) RunOption {
	return func(o *runOptions) { o.timeout = d }
}

// WithDeadline bounds the run by an absolute deadline in addition to the
// timeout.
func WithDeadline(t time.Time) RunOption {
	return func(o *runOptions) { o.deadline = t }
}

// WithIdleTimeout overrides the engine's idle timeout. Zero or negative
// disables it for this run.
func WithIdleTimeout(d time.Duration) RunOption {
	return func(o *runOptions) {
		if d <= 0 {
			d = 0
		}
		o.idleTimeout = d
	}
}

// WithEventHook registers a hook for the run.
func WithEventHook(h EventHook) RunOption {
	return func(o *runOptions) {
		if h != nil {
			o.hooks = append(o.hooks, h)
		}
	}
}
