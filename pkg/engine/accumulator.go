package engine

import (
	"errors"
	"strings"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/provider"
)

// Accumulator errors that are not failures reported by the stream itself.
var (
	ErrStillStreaming = errors.New("accumulator has not reached a terminal state")
	ErrFinalized      = errors.New("accumulator was already finalized")
)

// Accumulator folds ordered events into an answer, a citation list and a
// follow-up handle. It is a state machine: Streaming moves once to
// Completed (on Done) or Failed (on Error), and events after that are
// ignored. An Accumulator belongs to a single run and is not safe for
// concurrent use.
type Accumulator struct {
	status    api.RunStatus
	answer    strings.Builder
	citations []api.WebResult
	seenURL   map[string]struct{}
	handle    *api.ConversationHandle
	failure   *api.Error
	finalized bool
}

// NewAccumulator returns an accumulator in the Streaming state.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		status:  api.RunStatusStreaming,
		seenURL: make(map[string]struct{}),
	}
}

// Status returns the current state.
func (a *Accumulator) Status() api.RunStatus {
	return a.status
}

// AnswerLen returns the number of answer bytes folded so far.
func (a *Accumulator) AnswerLen() int {
	return a.answer.Len()
}

// Fold applies one event. It is a no-op once the accumulator is terminal.
func (a *Accumulator) Fold(ev provider.Event) {
	if a.status != api.RunStatusStreaming {
		return
	}

	switch ev.Type {
	case provider.EventTextDelta:
		a.answer.WriteString(ev.Text)

	case provider.EventCitations:
		for _, entry := range ev.Entries {
			if _, dup := a.seenURL[entry.URL]; dup {
				continue
			}
			a.seenURL[entry.URL] = struct{}{}
			a.citations = append(a.citations, entry)
		}

	case provider.EventFollowUp:
		if ev.Handle != nil {
			// Last write wins.
			a.handle = ev.Handle.Clone()
		}

	case provider.EventHeartbeat:
		// Only resets the engine's idle timer.

	case provider.EventError:
		a.failure = failureFromEvent(ev)
		a.transition(api.RunStatusFailed)

	case provider.EventDone:
		a.transition(api.RunStatusCompleted)
	}
}

func (a *Accumulator) transition(to api.RunStatus) {
	if err := api.ValidateRunTransition(a.status, to); err != nil {
		return
	}
	a.status = to
}

// Finalize converts a terminal accumulator into its result. It returns
// ErrStillStreaming before a terminal event, the stream's failure as an
// *api.Error after an Error event, and ErrFinalized on a second call.
// The partial answer of a failed run is never returned.
func (a *Accumulator) Finalize() (*api.FinalResponse, error) {
	if a.finalized {
		return nil, ErrFinalized
	}

	switch a.status {
	case api.RunStatusStreaming:
		return nil, ErrStillStreaming
	case api.RunStatusFailed:
		a.finalized = true
		return nil, a.failure
	}

	a.finalized = true
	resp := &api.FinalResponse{
		Answer:     a.answer.String(),
		WebResults: a.citations,
		FollowUp:   a.handle,
	}
	a.answer.Reset()
	a.citations = nil
	a.handle = nil
	return resp, nil
}

// failureFromEvent classifies an in-band error. Errors synthesized by the
// frame decoder are protocol errors; anything else came from the backend.
func failureFromEvent(ev provider.Event) *api.Error {
	switch ev.Code {
	case api.CodeProtocolError, api.CodeTruncatedStream, api.CodeFrameTooLarge:
		return api.NewProtocolError(ev.Code, ev.Message)
	default:
		msg := ev.Message
		if msg == "" {
			msg = "backend reported an error"
		}
		return api.NewUpstreamError(ev.Code, msg)
	}
}
