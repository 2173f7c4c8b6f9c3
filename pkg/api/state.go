package api

import "fmt"

// RunStatus is the lifecycle state of a response being assembled.
type RunStatus string

const (
	RunStatusStreaming RunStatus = "streaming"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// ValidateRunTransition checks whether a run status transition is valid.
// Only streaming may move, and only into a terminal state.
func ValidateRunTransition(from, to RunStatus) error {
	if from == RunStatusStreaming && to.Terminal() {
		return nil
	}
	return fmt.Errorf("invalid run transition from %s to %s", from, to)
}
