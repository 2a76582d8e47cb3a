package handlers

import (
	"log/slog"
	"net/http"

	"mercator-hq/relay/pkg/chat"
	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/session"
	"mercator-hq/relay/pkg/telemetry/logging"
)

// SessionsHandler serves the session endpoints:
//
//	POST /sessions       create an empty session
//	GET  /sessions       list session ids
//	GET  /sessions/{id}  load one session's history
type SessionsHandler struct {
	store  SessionStore
	logger *slog.Logger
}

// NewSessionsHandler creates a sessions handler.
func NewSessionsHandler(store SessionStore) *SessionsHandler {
	return &SessionsHandler{
		store:  store,
		logger: slog.Default().With("component", "handlers.sessions"),
	}
}

// Create handles POST /sessions.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.logger)

	id, err := h.store.Create(r.Context())
	if err != nil {
		log.Error("failed to create session", "error", err)
		writeError(w, log, proxy.HandleError(err))
		return
	}

	log.Info("session created", "session_id", id)
	if err := proxy.WriteJSONResponse(w, http.StatusCreated, types.SessionResponse{
		SessionID: id,
		Messages:  []chat.Message{},
	}); err != nil {
		log.Error("failed to write response", "error", err)
	}
}

// List handles GET /sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.logger)

	ids := h.store.List()
	if err := proxy.WriteJSONResponse(w, http.StatusOK, types.SessionListResponse{
		Sessions: ids,
		Count:    len(ids),
	}); err != nil {
		log.Error("failed to write response", "error", err)
	}
}

// Get handles GET /sessions/{id}.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.logger)

	id := r.PathValue("id")
	if err := session.ValidateID(id); err != nil {
		writeError(w, log, types.NewInvalidRequestError(err.Error(), "id", types.CodeInvalidValue))
		return
	}

	messages, err := h.store.Load(id)
	if err != nil {
		writeError(w, log, proxy.HandleError(err))
		return
	}

	if err := proxy.WriteJSONResponse(w, http.StatusOK, types.SessionResponse{
		SessionID: id,
		Messages:  messages,
	}); err != nil {
		log.Error("failed to write response", "error", err)
	}
}
