package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver (cgo)
	_ "modernc.org/sqlite"          // "sqlite" driver (pure Go)

	"mercator-hq/relay/pkg/chat"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    messages TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const upsertSession = `
INSERT INTO sessions (id, messages, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET messages = excluded.messages, updated_at = excluded.updated_at
`

// SQLiteConfig contains configuration for the SQLite session backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the database/sql driver: "sqlite" (default) or "sqlite3".
	Driver string

	// WALMode enables Write-Ahead Logging.
	WALMode bool

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/sessions.db",
		Driver:      DriverModernc,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteBackend stores each session as one row holding the JSON-encoded
// message list.
type SQLiteBackend struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteBackend opens the database and creates the schema.
func NewSQLiteBackend(config *SQLiteConfig) (*SQLiteBackend, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}
	if config.Driver != DriverModernc && config.Driver != DriverMattn {
		return nil, fmt.Errorf("unsupported sqlite driver %q", config.Driver)
	}

	logger := slog.Default().With("component", "session.sqlite")

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	// SQLite allows a single writer; one connection keeps upserts ordered.
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db, config: config, logger: logger}
	if err := b.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite session backend initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)
	return b, nil
}

func (b *SQLiteBackend) initialize() error {
	if b.config.WALMode {
		if _, err := b.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if b.config.BusyTimeout > 0 {
		stmt := fmt.Sprintf("PRAGMA busy_timeout=%d;", b.config.BusyTimeout.Milliseconds())
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("set busy timeout: %w", err)
		}
	}
	if _, err := b.db.Exec(sessionsSchema); err != nil {
		return fmt.Errorf("create sessions schema: %w", err)
	}
	return nil
}

// Kind returns "sqlite".
func (b *SQLiteBackend) Kind() string {
	return "sqlite"
}

// Ping checks the database connection.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// LoadAll reads every session row. Rows whose payload cannot be decoded are
// logged and skipped.
func (b *SQLiteBackend) LoadAll(ctx context.Context) (map[string][]chat.Message, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT id, messages FROM sessions")
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string][]chat.Message)
	for rows.Next() {
		var (
			id      string
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}

		var messages []chat.Message
		if err := json.Unmarshal([]byte(payload), &messages); err != nil {
			b.logger.Warn("skipping malformed session row", "session_id", id, "error", err)
			continue
		}
		if messages == nil {
			messages = []chat.Message{}
		}
		loaded[id] = messages
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return loaded, nil
}

// Save upserts the session row.
func (b *SQLiteBackend) Save(ctx context.Context, id string, messages []chat.Message) error {
	payload, err := json.Marshal(newRecord(id, messages).Messages)
	if err != nil {
		return &chat.PersistenceError{SessionID: id, Op: "encode", Cause: err}
	}

	if _, err := b.db.ExecContext(ctx, upsertSession, id, string(payload), time.Now().UTC()); err != nil {
		return &chat.PersistenceError{SessionID: id, Op: "upsert", Cause: err}
	}
	return nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
