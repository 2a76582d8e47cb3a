package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"mercator-hq/relay/pkg/chat"
)

const (
	// fileExt is the extension of persisted session files.
	fileExt = ".json"

	// tempPrefix marks in-flight writes. Files with this prefix are never
	// loaded and are removed by the Janitor once they go stale.
	tempPrefix = ".tmp-"

	// loadConcurrency bounds parallel file reads during LoadAll.
	loadConcurrency = 8
)

// FileBackend persists each session as <dir>/<id>.json.
type FileBackend struct {
	dir    string
	logger *slog.Logger
}

// NewFileBackend creates a FileBackend rooted at dir, creating the directory
// if it does not exist.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("session directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory %q: %w", dir, err)
	}

	return &FileBackend{
		dir:    dir,
		logger: slog.Default().With("component", "session.file"),
	}, nil
}

// Kind returns "file".
func (b *FileBackend) Kind() string {
	return "file"
}

// Ping reports whether the session directory still exists.
func (b *FileBackend) Ping(_ context.Context) error {
	info, err := os.Stat(b.dir)
	if err != nil {
		return fmt.Errorf("session directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("session directory %q is not a directory", b.dir)
	}
	return nil
}

// Dir returns the directory holding the session files.
func (b *FileBackend) Dir() string {
	return b.dir
}

// Path returns the file path used for session id.
func (b *FileBackend) Path(id string) string {
	return filepath.Join(b.dir, id+fileExt)
}

// LoadAll reads every <id>.json file in the directory. Unreadable or
// malformed files are logged and skipped.
func (b *FileBackend) LoadAll(ctx context.Context) (map[string][]chat.Message, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]chat.Message{}, nil
		}
		return nil, fmt.Errorf("read session directory %q: %w", b.dir, err)
	}

	var (
		mu     sync.Mutex
		loaded = make(map[string][]chat.Message, len(entries))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}

		id := strings.TrimSuffix(name, fileExt)
		if err := ValidateID(id); err != nil {
			b.logger.Warn("skipping session file with invalid name", "file", name, "error", err)
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			messages, err := b.readFile(id)
			if err != nil {
				b.logger.Warn("skipping malformed session file",
					"file", name,
					"error", err,
				)
				return nil
			}

			mu.Lock()
			loaded[id] = messages
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.logger.Debug("session files loaded", "dir", b.dir, "count", len(loaded))
	return loaded, nil
}

// readFile decodes one session file.
func (b *FileBackend) readFile(id string) ([]chat.Message, error) {
	data, err := os.ReadFile(b.Path(id))
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if rec.SessionID != "" && rec.SessionID != id {
		b.logger.Warn("session file id does not match file name",
			"file_id", rec.SessionID,
			"name_id", id,
		)
	}

	if rec.Messages == nil {
		rec.Messages = []chat.Message{}
	}
	return rec.Messages, nil
}

// Save writes the session to a temp file in the same directory and renames it
// over the target, so readers see either the old or the new file.
func (b *FileBackend) Save(_ context.Context, id string, messages []chat.Message) error {
	if err := ValidateID(id); err != nil {
		return &chat.PersistenceError{SessionID: id, Op: "validate", Cause: err}
	}

	data, err := json.MarshalIndent(newRecord(id, messages), "", "  ")
	if err != nil {
		return &chat.PersistenceError{SessionID: id, Op: "encode", Cause: err}
	}

	tmp, err := os.CreateTemp(b.dir, tempPrefix+"*")
	if err != nil {
		return &chat.PersistenceError{SessionID: id, Op: "create", Cause: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &chat.PersistenceError{SessionID: id, Op: "write", Cause: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &chat.PersistenceError{SessionID: id, Op: "sync", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &chat.PersistenceError{SessionID: id, Op: "close", Cause: err}
	}

	if err := os.Rename(tmpName, b.Path(id)); err != nil {
		os.Remove(tmpName)
		return &chat.PersistenceError{SessionID: id, Op: "rename", Cause: err}
	}

	return nil
}

// Close is a no-op for the file backend.
func (b *FileBackend) Close() error {
	return nil
}
