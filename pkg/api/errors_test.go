package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestErrorInterface(t *testing.T) {
	var _ error = &Error{}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			"with code",
			NewUpstreamError("rate_limited", "slow down"),
			"upstream (rate_limited): slow down",
		},
		{
			"without code",
			&Error{Kind: ErrorKindProtocol, Message: "bad frame"},
			"protocol: bad frame",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		wantKind ErrorKind
		wantCode string
	}{
		{"validation", NewValidationError(CodeEmptyQuery, "empty"), ErrorKindValidation, CodeEmptyQuery},
		{"auth", NewAuthError(CodeMissingToken, "missing"), ErrorKindAuth, CodeMissingToken},
		{"protocol", NewProtocolError(CodeNoTerminalEvent, "eof"), ErrorKindProtocol, CodeNoTerminalEvent},
		{"upstream", NewUpstreamError("boom", "backend"), ErrorKindUpstream, "boom"},
		{"timeout", NewTimeoutError(CodeDeadlineExceeded, "late"), ErrorKindTimeout, CodeDeadlineExceeded},
		{"cancelled", NewCancelledError("stop"), ErrorKindCancelled, CodeCancelled},
		{"transport", NewTransportError(CodeConnection, "refused", nil), ErrorKindTransport, CodeConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", tt.err.Kind, tt.wantKind)
			}
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("running query: %w", NewTimeoutError(CodeIdleTimeout, "no frames"))

	if got := KindOf(err); got != ErrorKindTimeout {
		t.Errorf("KindOf() = %q, want %q", got, ErrorKindTimeout)
	}
	if !IsKind(err, ErrorKindTimeout) {
		t.Error("IsKind(timeout) = false, want true")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf(plain error) should be empty")
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewProtocolError(CodeNoTerminalEvent, "stream closed"))

	if !errors.Is(err, &Error{Kind: ErrorKindProtocol}) {
		t.Error("errors.Is should match by kind alone")
	}
	if !errors.Is(err, &Error{Kind: ErrorKindProtocol, Code: CodeNoTerminalEvent}) {
		t.Error("errors.Is should match by kind and code")
	}
	if errors.Is(err, &Error{Kind: ErrorKindProtocol, Code: CodeTruncatedStream}) {
		t.Error("errors.Is should not match a different code")
	}
	if errors.Is(err, &Error{Kind: ErrorKindUpstream}) {
		t.Error("errors.Is should not match a different kind")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransportError(CodeConnection, "dial failed", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestErrorRetryable(t *testing.T) {
	tests := []struct {
		err  *Error
		want bool
	}{
		{NewTransportError(CodeConnection, "x", nil), true},
		{NewUpstreamError(CodeRateLimited, "x"), true},
		{NewUpstreamError("internal", "x"), false},
		{NewTimeoutError(CodeDeadlineExceeded, "x"), false},
		{NewValidationError(CodeEmptyQuery, "x"), false},
	}
	for _, tt := range tests {
		if got := tt.err.Retryable(); got != tt.want {
			t.Errorf("%v Retryable() = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorJSON(t *testing.T) {
	err := NewUpstreamError("rate_limited", "too many requests")
	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("marshal: %v", jerr)
	}
	want := `{"kind":"upstream","code":"rate_limited","message":"too many requests"}`
	if string(data) != want {
		t.Errorf("JSON = %s, want %s", data, want)
	}
}
