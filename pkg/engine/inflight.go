package engine

import (
	"context"
	"errors"
	"sync"
)

// ErrRunCancelled is the cancellation cause recorded when a run is aborted
// through Engine.Cancel or Engine.CancelAll.
var ErrRunCancelled = errors.New("run cancelled")

// InFlightRegistry tracks running queries by run ID so that they can be
// aborted from outside the goroutine that drives them. The servers use
// CancelAll on shutdown; MCP cancellation reaches a run through its
// request context instead.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]context.CancelCauseFunc
}

// NewInFlightRegistry creates an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]context.CancelCauseFunc),
	}
}

// Register records the cancel function of a run. It returns false and
// leaves the registry unchanged if id is already in use.
func (r *InFlightRegistry) Register(id string, cancel context.CancelCauseFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return false
	}
	r.entries[id] = cancel
	return true
}

// Cancel aborts a run with ErrRunCancelled. It reports whether the run was
// still registered.
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		cancel(ErrRunCancelled)
	}
	return ok
}

// CancelAll aborts every registered run and returns how many were aborted.
func (r *InFlightRegistry) CancelAll() int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]context.CancelCauseFunc)
	r.mu.Unlock()

	for _, cancel := range entries {
		cancel(ErrRunCancelled)
	}
	return len(entries)
}

// Remove drops a finished run without cancelling it.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of registered runs.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
