package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/relay/pkg/chat"
)

func createTempSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()

	backend, err := NewSQLiteBackend(&SQLiteConfig{
		Path:        filepath.Join(t.TempDir(), "sessions.db"),
		Driver:      DriverModernc,
		WALMode:     true,
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewSQLiteBackend() error = %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestSQLiteBackend_SaveAndLoadAll(t *testing.T) {
	backend := createTempSQLite(t)
	ctx := context.Background()

	if err := backend.Save(ctx, "s1", []chat.Message{{Role: chat.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// Second save overwrites.
	if err := backend.Save(ctx, "s1", []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := backend.Save(ctx, "s2", nil); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := backend.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("LoadAll() = %d sessions, want 2", len(loaded))
	}
	if got := loaded["s1"]; len(got) != 2 || got[1].Content != "hello" {
		t.Errorf("s1 = %+v, want two messages ending in hello", got)
	}
	if got := loaded["s2"]; got == nil || len(got) != 0 {
		t.Errorf("s2 = %#v, want empty non-nil history", got)
	}
}

func TestSQLiteBackend_StoreIntegration(t *testing.T) {
	backend := createTempSQLite(t)
	ctx := context.Background()

	store, err := Open(ctx, backend)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	id, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	loaded, err := backend.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if _, ok := loaded[id]; !ok {
		t.Errorf("created session %q not found in database", id)
	}
}

func TestNewSQLiteBackend_UnknownDriver(t *testing.T) {
	_, err := NewSQLiteBackend(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db"), Driver: "postgres"})
	if err == nil {
		t.Fatal("NewSQLiteBackend() expected error for unsupported driver")
	}
}

func TestSQLiteBackend_Ping(t *testing.T) {
	backend := createTempSQLite(t)

	if err := backend.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	backend.Close()
	if err := backend.Ping(context.Background()); err == nil {
		t.Error("Ping() error = nil on closed database, want error")
	}
}
