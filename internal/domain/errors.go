package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies why a compilation did not produce an artifact
type ErrorKind string

const (
	KindTransportUnreachable ErrorKind = "transport_unreachable"
	KindRelayFailure         ErrorKind = "relay_failure"
	KindUpstreamRejected     ErrorKind = "upstream_rejected"
	KindCompilationFailed    ErrorKind = "compilation_failed"
	KindProtocolViolation    ErrorKind = "protocol_violation"
)

// TransportCause narrows down a KindTransportUnreachable error
type TransportCause string

const (
	CauseNone        TransportCause = ""
	CauseUnreachable TransportCause = "unreachable"
	CauseReset       TransportCause = "reset"
	CauseTimeout     TransportCause = "timeout"
	CauseCancelled   TransportCause = "cancelled"
	CauseTLS         TransportCause = "tls"
)

// CompilationError is the only error type returned by a compile call
type CompilationError struct {
	Kind       ErrorKind
	Message    string
	Log        string
	Cause      TransportCause
	StatusCode int
	Err        error
}

func (e *CompilationError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Cause != CauseNone {
		msg += fmt.Sprintf(" (%s)", e.Cause)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether resubmitting the same document could succeed.
func (e *CompilationError) Retryable() bool {
	switch e.Kind {
	case KindTransportUnreachable:
		return e.Cause != CauseCancelled
	case KindRelayFailure:
		return true
	case KindUpstreamRejected:
		return e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// Hint returns the guidance shown to a user for this kind of failure.
func (e *CompilationError) Hint() string {
	switch e.Kind {
	case KindCompilationFailed:
		return "The document could not be compiled. Check the log for the offending line."
	case KindTransportUnreachable, KindRelayFailure:
		return "The compilation service is unavailable. Try again later."
	case KindUpstreamRejected:
		if e.Retryable() {
			return "The compilation service is unavailable. Try again later."
		}
		return "The compilation service rejected the request."
	default:
		return "The compilation service answered in an unexpected way. Please report this as a bug."
	}
}

// NewError creates a new compilation error
func NewError(kind ErrorKind, message string, err error) *CompilationError {
	return &CompilationError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func TransportError(cause TransportCause, message string, err error) *CompilationError {
	e := NewError(KindTransportUnreachable, message, err)
	e.Cause = cause
	return e
}

func RelayError(statusCode int, message string) *CompilationError {
	e := NewError(KindRelayFailure, message, nil)
	e.StatusCode = statusCode
	return e
}

func UpstreamError(statusCode int, message string) *CompilationError {
	e := NewError(KindUpstreamRejected, message, nil)
	e.StatusCode = statusCode
	return e
}

func CompilationFailed(log string) *CompilationError {
	e := NewError(KindCompilationFailed, "document failed to compile", nil)
	e.Log = log
	return e
}

func ProtocolError(message string, err error) *CompilationError {
	return NewError(KindProtocolViolation, message, err)
}

// AsCompilationError unwraps err into a *CompilationError. Errors of any
// other type are reported as protocol violations.
func AsCompilationError(err error) *CompilationError {
	if err == nil {
		return nil
	}
	var ce *CompilationError
	if errors.As(err, &ce) {
		return ce
	}
	return ProtocolError("unexpected failure", err)
}

// KindOf returns the kind of err, or "" when err is nil.
func KindOf(err error) ErrorKind {
	if ce := AsCompilationError(err); ce != nil {
		return ce.Kind
	}
	return ""
}
