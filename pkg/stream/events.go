package stream

import (
	"encoding/json"

	"mercator-hq/relay/pkg/chat"
)

// EventType names a client-facing event.
type EventType string

// Client-facing event types, in the order they may appear on one stream.
const (
	EventSession EventType = "session"
	EventDelta   EventType = "delta"
	EventError   EventType = "error"
	EventDone    EventType = "done"
)

// Completion reasons carried by the done event.
const (
	// ReasonStop means the backend sent the terminator.
	ReasonStop = "stop"

	// ReasonEOF means the body ended without a terminator.
	ReasonEOF = "eof"

	// ReasonCanceled means the client went away mid-stream.
	ReasonCanceled = "canceled"

	// ReasonError means the backend failed before streaming content.
	ReasonError = "error"
)

// Event is one self-contained client-facing event. Only the fields relevant
// to Type are populated.
type Event struct {
	Type EventType `json:"type"`

	// SessionID is set on session and done events.
	SessionID string `json:"session_id,omitempty"`

	// Content is the text fragment of a content delta.
	Content string `json:"content,omitempty"`

	// Raw is the decoded backend frame that produced a delta.
	Raw json.RawMessage `json:"raw,omitempty"`

	// Status and Body describe a backend error.
	Status int    `json:"status,omitempty"`
	Body   string `json:"body,omitempty"`

	// Message is the completed assistant message on a done event.
	Message *chat.Message `json:"message,omitempty"`

	// Reason tells how the stream completed (stop, eof, canceled, error).
	Reason string `json:"reason,omitempty"`
}

// SessionEvent announces the session the stream belongs to.
func SessionEvent(sessionID string) Event {
	return Event{Type: EventSession, SessionID: sessionID}
}

// ErrorEvent reports a backend failure with its status and raw body.
func ErrorEvent(status int, body string) Event {
	return Event{Type: EventError, Status: status, Body: body}
}

// DoneEvent carries the final message. It is always the last event.
func DoneEvent(sessionID string, msg chat.Message, reason string) Event {
	return Event{Type: EventDone, SessionID: sessionID, Message: &msg, Reason: reason}
}
