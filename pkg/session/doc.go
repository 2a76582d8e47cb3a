// Package session implements the Session Store: a durable mapping from
// session identifier to ordered message history.
//
// The Store keeps every session in memory and writes through to a Backend on
// each Replace. Backends are read once, when the Store is opened, so a request
// never touches durable storage on the read path.
//
// # Backends
//
//   - FileBackend writes one JSON file per session, {"session_id", "messages"},
//     using a temp file and rename so a crash mid-write never leaves a torn
//     file behind.
//   - SQLiteBackend keeps one row per session. The driver is selectable:
//     "sqlite" (modernc.org/sqlite, pure Go) or "sqlite3" (mattn/go-sqlite3).
//   - MemoryBackend keeps nothing on disk and is intended for tests.
//
// Malformed persisted sessions are logged and skipped at load time.
//
// # Turn Serialization
//
// Acquire serializes turns against the same session identifier. Turns against
// different sessions proceed concurrently.
//
// # Janitor
//
// The Janitor periodically removes temp files orphaned by a crash between
// write and rename.
package session
