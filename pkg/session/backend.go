package session

import (
	"context"

	"mercator-hq/relay/pkg/chat"
)

// Backend is the durable-storage port of the Store.
type Backend interface {
	// Kind returns a short backend name for logs ("file", "sqlite", "memory").
	Kind() string

	// LoadAll reads every persisted session. Entries that cannot be decoded
	// are skipped (and logged) rather than failing the whole load.
	LoadAll(ctx context.Context) (map[string][]chat.Message, error)

	// Save replaces the persisted history of one session. A failure is
	// reported as *chat.PersistenceError and leaves the previous copy intact.
	Save(ctx context.Context, id string, messages []chat.Message) error

	// Close releases backend resources.
	Close() error
}

// Pinger is implemented by backends that can report whether their storage
// is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// record is the persisted form of one session.
type record struct {
	SessionID string         `json:"session_id"`
	Messages  []chat.Message `json:"messages"`
}

func newRecord(id string, messages []chat.Message) record {
	if messages == nil {
		messages = []chat.Message{}
	}
	return record{SessionID: id, Messages: messages}
}
