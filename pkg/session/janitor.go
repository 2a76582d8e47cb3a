package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor removes orphaned temp files left in the session directory by
// writes that never reached the rename step.
type Janitor struct {
	dir      string
	schedule string
	grace    time.Duration

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	now     func() time.Time
	logger  *slog.Logger
}

// NewJanitor creates a janitor for dir. Temp files younger than grace are
// left alone since a write may still be in progress.
func NewJanitor(dir, schedule string, grace time.Duration) *Janitor {
	return &Janitor{
		dir:      dir,
		schedule: schedule,
		grace:    grace,
		cron:     cron.New(),
		now:      time.Now,
		logger:   slog.Default().With("component", "session.janitor"),
	}
}

// Start schedules Sweep using the standard cron expression. An empty
// schedule disables the janitor. The janitor stops when ctx is done.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.schedule == "" {
		j.logger.Info("sweep schedule not configured, janitor disabled")
		return nil
	}

	if _, err := cron.ParseStandard(j.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", j.schedule, err)
	}

	if _, err := j.cron.AddFunc(j.schedule, j.runSweep); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	j.cron.Start()
	j.running = true

	j.logger.Info("session janitor started",
		"dir", j.dir,
		"schedule", j.schedule,
		"grace", j.grace,
	)

	go func() {
		<-ctx.Done()
		j.Stop()
	}()

	return nil
}

func (j *Janitor) runSweep() {
	removed, err := j.Sweep()
	if err != nil {
		j.logger.Error("temp file sweep failed", "error", err)
		return
	}
	if removed > 0 {
		j.logger.Info("temp file sweep completed", "removed", removed)
	}
}

// Sweep deletes stale temp files and returns how many were removed.
func (j *Janitor) Sweep() (int, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := j.now().Add(-j.grace)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.Warn("failed to remove temp file", "file", path, "error", err)
			continue
		}
		removed++
	}

	return removed, nil
}

// Stop stops the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		<-j.cron.Stop().Done()
		j.running = false
		j.logger.Info("session janitor stopped")
	}
}

// IsRunning reports whether the schedule is active.
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// NextRun returns the next scheduled sweep, or nil when not scheduled.
func (j *Janitor) NextRun() *time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := j.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
