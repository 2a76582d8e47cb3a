package session

import (
	"context"
	"sync"

	"mercator-hq/relay/pkg/chat"
)

// MemoryBackend keeps persisted sessions in memory. It is useful for tests
// and for running the relay without durable storage.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string][]chat.Message
	saves   int

	// SaveErr, when set, is returned (wrapped) by every Save call.
	SaveErr error
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]chat.Message)}
}

// Kind returns "memory".
func (b *MemoryBackend) Kind() string {
	return "memory"
}

// LoadAll returns copies of every stored session.
func (b *MemoryBackend) LoadAll(_ context.Context) (map[string][]chat.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string][]chat.Message, len(b.records))
	for id, msgs := range b.records {
		out[id] = chat.CloneMessages(msgs)
	}
	return out, nil
}

// Save stores a copy of messages under id.
func (b *MemoryBackend) Save(_ context.Context, id string, messages []chat.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.saves++
	if b.SaveErr != nil {
		return &chat.PersistenceError{SessionID: id, Op: "write", Cause: b.SaveErr}
	}
	b.records[id] = chat.CloneMessages(messages)
	return nil
}

// Get returns the stored copy of one session.
func (b *MemoryBackend) Get(id string) ([]chat.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs, ok := b.records[id]
	if !ok {
		return nil, false
	}
	return chat.CloneMessages(msgs), true
}

// SaveCount returns the number of Save calls, successful or not.
func (b *MemoryBackend) SaveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// Close is a no-op.
func (b *MemoryBackend) Close() error {
	return nil
}
