package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"mercator-hq/relay/pkg/chat"
)

// Store holds every session's history in memory and mirrors each change to
// a durable Backend. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]chat.Message
	backend  Backend
	locks    *turnLocks
	logger   *slog.Logger
}

// Open creates a Store and loads every persisted session from backend before
// returning. Malformed entries are skipped by the backend.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("session backend is required")
	}

	logger := slog.Default().With("component", "session.store")

	loaded, err := backend.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sessions from %s backend: %w", backend.Kind(), err)
	}
	if loaded == nil {
		loaded = make(map[string][]chat.Message)
	}

	logger.Info("session store opened",
		"backend", backend.Kind(),
		"sessions", len(loaded),
	)

	return &Store{
		sessions: loaded,
		backend:  backend,
		locks:    newTurnLocks(),
		logger:   logger,
	}, nil
}

// Create registers a new session with an empty history and persists it.
// If persistence fails the session is forgotten and the error returned.
func (s *Store) Create(ctx context.Context) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()

	s.mu.Lock()
	s.sessions[id] = []chat.Message{}
	s.mu.Unlock()

	if err := s.backend.Save(ctx, id, []chat.Message{}); err != nil {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return "", err
	}

	s.logger.Debug("session created", "session_id", id)
	return id, nil
}

// Load returns a copy of the session's history, or ErrSessionNotFound.
func (s *Store) Load(id string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return chat.CloneMessages(msgs), nil
}

// Replace overwrites the session's history and synchronously persists it.
// The in-memory copy is updated even when persistence fails; the returned
// error is then a *chat.PersistenceError.
func (s *Store) Replace(ctx context.Context, id string, messages []chat.Message) error {
	if err := ValidateID(id); err != nil {
		return &chat.ValidationError{Field: "session_id", Message: err.Error()}
	}

	snapshot := chat.CloneMessages(messages)

	s.mu.Lock()
	s.sessions[id] = snapshot
	s.mu.Unlock()

	return s.backend.Save(ctx, id, snapshot)
}

// List returns every known session id in sorted order.
func (s *Store) List() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Count returns the number of known sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Acquire serializes turns on one session. It blocks until no other turn
// holds id or ctx is done. The returned release func is idempotent.
func (s *Store) Acquire(ctx context.Context, id string) (func(), error) {
	return s.locks.acquire(ctx, id)
}

// Ping checks the durable backend when it supports it.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Backend returns the durable backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
