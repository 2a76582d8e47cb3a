package main

import (
	"fmt"
	"os"
	"path/filepath"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/session"
)

// openBackend opens the durable session backend named by kind ("file" or
// "sqlite") using the paths in cfg.
func openBackend(cfg config.SessionsConfig, kind string) (session.Backend, error) {
	switch kind {
	case "file":
		return session.NewFileBackend(cfg.Dir)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		return session.NewSQLiteBackend(&session.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			WALMode:     cfg.SQLite.WALMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported sessions backend %q", kind)
	}
}
