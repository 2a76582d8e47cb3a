package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJanitor_SweepRemovesStaleTempFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, ".tmp-stale")
	fresh := filepath.Join(dir, ".tmp-fresh")
	session := filepath.Join(dir, "s1.json")
	for _, p := range []string{stale, fresh, session} {
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(session, old, old); err != nil {
		t.Fatal(err)
	}

	j := NewJanitor(dir, "", time.Hour)
	removed, err := j.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp file still present")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh temp file was removed")
	}
	if _, err := os.Stat(session); err != nil {
		t.Error("session file was removed")
	}
}

func TestJanitor_StartAndStop(t *testing.T) {
	j := NewJanitor(t.TempDir(), "*/5 * * * *", time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := j.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !j.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}
	if next := j.NextRun(); next == nil || !next.After(time.Now()) {
		t.Errorf("NextRun() = %v, want a future time", next)
	}

	j.Stop()
	if j.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestJanitor_InvalidSchedule(t *testing.T) {
	j := NewJanitor(t.TempDir(), "not a schedule", time.Minute)
	if err := j.Start(context.Background()); err == nil {
		t.Error("Start() expected error for invalid schedule")
	}
}

func TestJanitor_EmptyScheduleDisabled(t *testing.T) {
	j := NewJanitor(t.TempDir(), "", time.Minute)
	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if j.IsRunning() {
		t.Error("IsRunning() = true with empty schedule")
	}
}
