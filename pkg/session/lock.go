package session

import (
	"context"
	"sync"
)

// turnLocks hands out one mutex-like slot per session id. Entries are
// reference counted and dropped once nobody holds or waits on them.
type turnLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	slot chan struct{}
	refs int
}

func newTurnLocks() *turnLocks {
	return &turnLocks{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the slot for id is free or ctx is done.
func (l *turnLocks) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{slot: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		l.unref(id, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-e.slot
			l.unref(id, e)
		})
	}
	return release, nil
}

func (l *turnLocks) unref(id string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// size returns the number of live entries.
func (l *turnLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
