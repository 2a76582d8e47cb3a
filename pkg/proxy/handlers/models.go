package handlers

import (
	"log/slog"
	"net/http"

	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/telemetry/logging"
)

// ModelsHandler serves GET /models with the configured model catalog.
type ModelsHandler struct {
	models ModelCatalog
	logger *slog.Logger
}

// NewModelsHandler creates a models handler.
func NewModelsHandler(models ModelCatalog) *ModelsHandler {
	return &ModelsHandler{
		models: models,
		logger: slog.Default().With("component", "handlers.models"),
	}
}

// ServeHTTP implements http.Handler.
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.logger)

	defaultKey := h.models.Default()
	resp := types.ModelsResponse{
		Object:  "list",
		Default: defaultKey,
		Data:    []types.ModelInfo{},
	}
	for _, key := range h.models.Keys() {
		client, err := h.models.Resolve(key)
		if err != nil {
			// The catalog was reloaded between Keys and Resolve.
			continue
		}
		resp.Data = append(resp.Data, types.ModelInfo{
			Key:       key,
			ModelName: client.ModelName(),
			Default:   key == defaultKey,
		})
	}

	if err := proxy.WriteJSONResponse(w, http.StatusOK, resp); err != nil {
		log.Error("failed to write response", "error", err)
	}
}
