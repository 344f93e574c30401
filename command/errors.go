// Package command defines the unit of work the engine moves around: a
// named command with encoded arguments, and the completion handle the
// caller awaits.
package command

import (
	"errors"
	"fmt"
)

// ClientError is a typed engine failure with a stable error code.
//
// Codes let embedding applications match on failure classes without
// string-comparing messages; messages stay free to change.
type ClientError struct {
	Code    string // stable code, e.g. "LT-CONN-0501"
	Message string // human-readable message
	Details string // optional additional context
	Cause   error  // underlying error, if any
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches on the error code, so sentinel instances below work with
// errors.Is regardless of details or cause.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy of the error with additional details.
func (e *ClientError) WithDetails(details string) *ClientError {
	return &ClientError{Code: e.Code, Message: e.Message, Details: details, Cause: e.Cause}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *ClientError) WithCause(cause error) *ClientError {
	return &ClientError{Code: e.Code, Message: e.Message, Details: e.Details, Cause: cause}
}

// NewClientError creates a ClientError with the given code and message.
func NewClientError(code, message string) *ClientError {
	return &ClientError{Code: code, Message: message}
}

// Engine failure classes.
var (
	// ErrConnectionLost fails every command in-flight on a connection
	// that hit an I/O or protocol error. The connection is discarded.
	ErrConnectionLost = NewClientError("LT-CONN-0501", "connection lost")

	// ErrSlotUnassigned means the active topology has no owner for the
	// command's slot.
	ErrSlotUnassigned = NewClientError("LT-TOPO-0404", "hash slot has no known owner")

	// ErrTopologyInconsistent rejects a discovery reply with
	// overlapping, missing or malformed slot ranges.
	ErrTopologyInconsistent = NewClientError("LT-TOPO-0422", "discovery reply is inconsistent")

	// ErrTooManyRedirections trips the per-command redirect loop guard.
	ErrTooManyRedirections = NewClientError("LT-ROUTE-0508", "too many redirections")

	// ErrClusterUnavailable surfaces a CLUSTERDOWN reply. Not retried
	// by the engine; the caller decides.
	ErrClusterUnavailable = NewClientError("LT-ROUTE-0503", "cluster is unavailable")

	// ErrTopologyRefreshFailed means no discovery target was reachable.
	// The last-known-good topology stays in place.
	ErrTopologyRefreshFailed = NewClientError("LT-TOPO-0502", "topology refresh failed")

	// ErrClientClosed rejects dispatches after Close.
	ErrClientClosed = NewClientError("LT-CLIENT-0410", "client is closed")
)

// IsClientError reports whether err is a ClientError with the given
// code. An empty code matches any ClientError.
func IsClientError(err error, code string) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	return code == "" || ce.Code == code
}
