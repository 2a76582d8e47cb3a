package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/telemetry/logging"
)

// IndexFile is served for "/".
const IndexFile = "chat.html"

// StaticFiles lists the only files the UI handler serves.
var StaticFiles = []string{IndexFile, "chat.css", "chat.js"}

// StaticHandler serves the bundled chat page from a directory. Only the
// names in StaticFiles are reachable; every other path is a 404.
type StaticHandler struct {
	dir     string
	allowed map[string]bool
	logger  *slog.Logger
}

// NewStaticHandler creates a handler serving files from dir.
func NewStaticHandler(dir string) *StaticHandler {
	allowed := make(map[string]bool, len(StaticFiles))
	for _, name := range StaticFiles {
		allowed[name] = true
	}
	return &StaticHandler{
		dir:     dir,
		allowed: allowed,
		logger:  slog.Default().With("component", "handlers.static"),
	}
}

// ServeHTTP implements http.Handler.
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.logger)

	name := path.Clean("/" + r.URL.Path)[1:]
	if name == "" {
		name = IndexFile
	}
	if !h.allowed[name] {
		writeError(w, log, types.NewNotFoundError("not found", "not_found"))
		return
	}

	f, err := os.Open(filepath.Join(h.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, log, types.NewNotFoundError("not found", "not_found"))
			return
		}
		log.Error("failed to open static file", "file", name, "error", err)
		writeError(w, log, proxy.HandleError(err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, log, types.NewNotFoundError("not found", "not_found"))
		return
	}

	http.ServeContent(w, r, name, info.ModTime(), f)
}
