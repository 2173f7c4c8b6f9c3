package api

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of an engine error.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindProtocol   ErrorKind = "protocol"
	ErrorKindUpstream   ErrorKind = "upstream"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindCancelled  ErrorKind = "cancelled"
	ErrorKindTransport  ErrorKind = "transport"
)

// Well-known error codes. Upstream errors carry the backend's own code.
const (
	CodeEmptyQuery       = "empty_query"
	CodeQueryTooLong     = "query_too_long"
	CodeInvalidSource    = "invalid_source"
	CodeInvalidModelTier = "invalid_model_tier"
	CodeInvalidModel     = "invalid_model"
	CodeMissingToken     = "missing_token"
	CodeInvalidToken     = "invalid_token"
	CodeProtocolError    = "protocol_error"
	CodeTruncatedStream  = "truncated_stream"
	CodeNoTerminalEvent  = "no_terminal_event"
	CodeFrameTooLarge    = "frame_too_large"
	CodeDeadlineExceeded = "deadline_exceeded"
	CodeIdleTimeout      = "idle_timeout"
	CodeCancelled        = "cancelled"
	CodeConnection       = "connection_error"
	CodeHTTPStatus       = "http_status"
	CodeRateLimited      = "rate_limited"
	CodeInvalidThread    = "invalid_thread"
	CodeUnknownThread    = "unknown_thread"
	CodeInvalidFollowUp  = "invalid_follow_up"
)

// Error is the canonical error returned by every engine component.
// All kinds are terminal for the run that produced them.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message"`

	// Err is the underlying cause, if any. It is not serialized.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and, when set on the target, by code.
// This lets callers write errors.Is(err, &api.Error{Kind: api.ErrorKindTimeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Retryable reports whether a caller may safely retry the failed run.
// Conversational requests are not idempotent, so only failures that happened
// before any event was consumed qualify.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrorKindTransport:
		return true
	case ErrorKindUpstream:
		return e.Code == CodeRateLimited
	default:
		return false
	}
}

// KindOf returns the kind of err if it is (or wraps) an *Error, or the
// empty string otherwise.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// NewValidationError creates an Error for bad caller input.
func NewValidationError(code, message string) *Error {
	return &Error{Kind: ErrorKindValidation, Code: code, Message: message}
}

// NewAuthError creates an Error for missing or rejected credentials.
func NewAuthError(code, message string) *Error {
	return &Error{Kind: ErrorKindAuth, Code: code, Message: message}
}

// NewProtocolError creates an Error for a malformed or truncated event stream.
func NewProtocolError(code, message string) *Error {
	return &Error{Kind: ErrorKindProtocol, Code: code, Message: message}
}

// NewUpstreamError creates an Error for a failure reported by the backend.
func NewUpstreamError(code, message string) *Error {
	return &Error{Kind: ErrorKindUpstream, Code: code, Message: message}
}

// NewTimeoutError creates an Error for an elapsed deadline.
func NewTimeoutError(code, message string) *Error {
	return &Error{Kind: ErrorKindTimeout, Code: code, Message: message}
}

// NewCancelledError creates an Error for a caller-initiated abort.
func NewCancelledError(message string) *Error {
	return &Error{Kind: ErrorKindCancelled, Code: CodeCancelled, Message: message}
}

// NewTransportError creates an Error for a connection failure or an
// unexpected HTTP status returned before the stream started.
func NewTransportError(code, message string, cause error) *Error {
	return &Error{Kind: ErrorKindTransport, Code: code, Message: message, Err: cause}
}
