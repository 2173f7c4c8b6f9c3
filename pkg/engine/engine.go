package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/auth"
	"github.com/rhuss/askstream/pkg/debug"
	"github.com/rhuss/askstream/pkg/observability"
	"github.com/rhuss/askstream/pkg/provider"
)

var errIdleTimeout = errors.New("idle timeout")

// Engine runs queries against one backend. It holds no per-run state, so a
// single Engine serves any number of concurrent runs; each run owns its
// connection, reader and accumulator.
type Engine struct {
	protocol  provider.Protocol
	transport provider.Transport
	cfg       Config
	inflight  *InFlightRegistry
}

// New creates an Engine. Protocol and transport must not be nil.
func New(p provider.Protocol, t provider.Transport, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: protocol must not be nil")
	}
	if t == nil {
		return nil, fmt.Errorf("engine: transport must not be nil")
	}
	return &Engine{
		protocol:  p,
		transport: t,
		cfg:       cfg,
		inflight:  NewInFlightRegistry(),
	}, nil
}

// Cancel aborts the run registered under id. The run fails with a
// cancelled error. It reports whether the run was still in flight. Callers
// that own the run's context should cancel that instead.
func (e *Engine) Cancel(id string) bool {
	return e.inflight.Cancel(id)
}

// CancelAll aborts every in-flight run and returns how many were aborted.
func (e *Engine) CancelAll() int {
	return e.inflight.CancelAll()
}

// Active returns the number of in-flight runs.
func (e *Engine) Active() int {
	return e.inflight.Len()
}

// Run executes one query and returns the assembled response.
//
// The run is bounded by ctx, the engine timeout (or WithTimeout /
// WithDeadline) and the idle timeout. It makes exactly one connection
// attempt. On any failure the partial answer is discarded and an *api.Error
// is returned:
//
//   - validation: the query cannot be serialized
//   - auth: credentials are missing or were rejected
//   - transport: the connection failed or the stream could not be read
//   - protocol: the stream was malformed or ended without a terminal event
//   - upstream: the backend reported an error event
//   - timeout: the deadline or idle timeout elapsed
//   - cancelled: ctx was cancelled or the run was aborted via Cancel
//
// handle may be nil to start a new conversation.
func (e *Engine) Run(ctx context.Context, q api.Query, creds *auth.Credentials, handle *api.ConversationHandle, opts ...RunOption) (*api.FinalResponse, error) {
	o := runOptions{
		timeout:     e.cfg.timeout(),
		idleTimeout: e.cfg.idleTimeout(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	tier := string(q.WithDefaults().Tier)
	start := time.Now()

	resp, err := e.run(ctx, q, creds, handle, o)

	outcome := "completed"
	if err != nil {
		outcome = string(api.KindOf(err))
		slog.Warn("query run failed",
			"run_id", o.runID,
			"tier", tier,
			"error", err,
			"elapsed", time.Since(start),
		)
	} else {
		debug.Log("engine", "query run completed",
			"run_id", o.runID,
			"answer_bytes", len(resp.Answer),
			"web_results", len(resp.WebResults),
			"follow_up", resp.FollowUp != nil,
			"elapsed", time.Since(start),
		)
	}
	observability.ObserveRun(tier, outcome, time.Since(start))
	return resp, err
}

func (e *Engine) run(ctx context.Context, q api.Query, creds *auth.Credentials, handle *api.ConversationHandle, o runOptions) (*api.FinalResponse, error) {
	req, err := e.protocol.BuildRequest(q, handle)
	if err != nil {
		return nil, err
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if !e.inflight.Register(o.runID, cancel) {
		return nil, api.NewValidationError("duplicate_run_id", fmt.Sprintf("run %q is already in flight", o.runID))
	}
	defer e.inflight.Remove(o.runID)

	var stopTimeout context.CancelFunc
	if !o.deadline.IsZero() {
		ctx, stopTimeout = context.WithDeadline(ctx, o.deadline)
		defer stopTimeout()
	}
	if o.timeout > 0 {
		ctx, stopTimeout = context.WithTimeout(ctx, o.timeout)
		defer stopTimeout()
	}

	observability.RunsActive.Inc()
	defer observability.RunsActive.Dec()

	debug.Log("engine", "opening stream",
		"run_id", o.runID,
		"backend", e.protocol.Name(),
		"follow_up", handle != nil,
	)

	body, err := e.transport.OpenStream(ctx, req, creds)
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextError(ctx)
		}
		return nil, asAPIError(err)
	}
	defer body.Close()

	// Closing the body unblocks a pending read when the run is aborted.
	stopClose := context.AfterFunc(ctx, func() { body.Close() })
	defer stopClose()

	var idle *time.Timer
	if o.idleTimeout > 0 {
		idle = time.AfterFunc(o.idleTimeout, func() { cancel(errIdleTimeout) })
		defer idle.Stop()
	}

	acc := NewAccumulator()
	reader := e.protocol.NewEventReader(body)

	for acc.Status() == api.RunStatusStreaming {
		ev, err := reader.Next()
		if ctx.Err() != nil {
			return nil, contextError(ctx)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, api.NewTransportError(api.CodeConnection, "stream read failed: "+err.Error(), err)
		}

		if idle != nil {
			idle.Reset(o.idleTimeout)
		}
		observability.StreamEventsTotal.WithLabelValues(ev.Type.String()).Inc()
		debug.Log("stream", "event", "run_id", o.runID, "type", ev.Type.String())

		acc.Fold(ev)
		for _, hook := range o.hooks {
			hook(o.runID, ev)
		}
	}

	resp, err := acc.Finalize()
	if errors.Is(err, ErrStillStreaming) {
		return nil, api.NewProtocolError(api.CodeNoTerminalEvent, "stream ended without a done or error event")
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// contextError maps the reason a run context ended to an *api.Error.
func contextError(ctx context.Context) *api.Error {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errIdleTimeout):
		return api.NewTimeoutError(api.CodeIdleTimeout, "no event received within the idle timeout")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return api.NewTimeoutError(api.CodeDeadlineExceeded, "run deadline elapsed before the stream finished")
	default:
		e := api.NewCancelledError("run was cancelled")
		e.Err = cause
		return e
	}
}

// asAPIError passes *api.Error values through and wraps anything else from
// a transport as a connection failure.
func asAPIError(err error) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return err
	}
	return api.NewTransportError(api.CodeConnection, err.Error(), err)
}
