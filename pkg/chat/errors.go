package chat

import (
	"fmt"
)

// ValidationError represents a malformed client request.
// It is always produced before any backend call is made.
type ValidationError struct {
	// Field is the name of the invalid field
	Field string

	// Message describes what is invalid about the field
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// BackendError represents a failure talking to the completion backend:
// the backend was unreachable, returned a non-success status, or sent a
// response that could not be decoded.
type BackendError struct {
	// Model is the model key the request was routed to
	Model string

	// StatusCode is the HTTP status returned by the backend (0 if no response)
	StatusCode int

	// Body is the raw response body, if one was received
	Body string

	// Message describes the failure
	Message string

	// Timeout is true when the request exceeded its deadline
	Timeout bool

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("backend %q error (status %d): %s", e.Model, e.StatusCode, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("backend %q error: %s: %v", e.Model, e.Message, e.Cause)
	default:
		return fmt.Sprintf("backend %q error: %s", e.Model, e.Message)
	}
}

// Unwrap returns the underlying error for error chain support.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// PersistenceError represents a failure writing a session to durable storage.
type PersistenceError struct {
	// SessionID is the session that failed to persist
	SessionID string

	// Op is the storage operation that failed (e.g. "write", "rename")
	Op string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist session %q: %s: %v", e.SessionID, e.Op, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
