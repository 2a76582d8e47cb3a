package handlers

import (
	"log/slog"
	"net/http"

	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/stream"
	"mercator-hq/relay/pkg/telemetry/logging"
)

// ChatHandler serves POST /chat/completions.
type ChatHandler struct {
	relay        TurnRunner
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewChatHandler creates a new chat handler. maxBodyBytes <= 0 selects
// proxy.DefaultMaxBodyBytes.
func NewChatHandler(relay TurnRunner, maxBodyBytes int64) *ChatHandler {
	return &ChatHandler{
		relay:        relay,
		maxBodyBytes: maxBodyBytes,
		logger:       slog.Default().With("component", "handlers.chat"),
	}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, h.logger)

	if r.Method != http.MethodPost {
		writeError(w, log, types.NewMethodNotAllowedError(r.Method))
		return
	}

	turn, err := proxy.ParseTurnRequest(w, r, h.maxBodyBytes)
	if err != nil {
		log.Warn("failed to parse request", "error", err)
		writeError(w, log, proxy.HandleError(err))
		return
	}

	resp := h.relay.HandleTurn(ctx, turn)
	if !resp.Streaming() {
		if err := proxy.WriteJSONResponse(w, resp.Status, resp.Body); err != nil {
			log.Error("failed to write response", "error", err)
		}
		return
	}

	writeEvents(w, log, resp.Events)
}

// writeEvents relays events as SSE frames and closes the stream with the
// [DONE] marker. The channel is always drained so the producing goroutine
// can finish even after the client went away.
func writeEvents(w http.ResponseWriter, log *slog.Logger, events <-chan stream.Event) {
	proxy.SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	broken := false
	frames := 0
	for ev := range events {
		if broken {
			continue
		}
		if err := proxy.WriteSSEEvent(w, ev); err != nil {
			log.Warn("client stream closed", "frames_sent", frames, "error", err)
			broken = true
			continue
		}
		frames++
	}

	if broken {
		return
	}
	if err := proxy.WriteSSEDone(w); err != nil {
		log.Warn("failed to write SSE done marker", "error", err)
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, errResp *types.ErrorResponse) {
	if err := proxy.WriteErrorResponse(w, errResp); err != nil {
		log.Error("failed to write error response", "error", err)
	}
}
