package types

import "mercator-hq/relay/pkg/chat"

// SessionResponse is returned by POST /sessions and GET /sessions/{id}.
type SessionResponse struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id"`

	// Messages is the stored history, oldest first.
	Messages []chat.Message `json:"messages"`
}

// SessionListResponse is returned by GET /sessions.
type SessionListResponse struct {
	// Sessions holds every known session id in sorted order.
	Sessions []string `json:"sessions"`

	// Count is len(Sessions).
	Count int `json:"count"`
}

// ModelInfo describes one configured model.
type ModelInfo struct {
	// Key is the name clients select the model by.
	Key string `json:"key"`

	// ModelName is the identifier sent to the backend.
	ModelName string `json:"model_name"`

	// Default is true for the model used when a request names none.
	Default bool `json:"default,omitempty"`
}

// ModelsResponse is returned by GET /models.
type ModelsResponse struct {
	Object  string      `json:"object"`
	Default string      `json:"default"`
	Data    []ModelInfo `json:"data"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthStatusHealthy is the only status the health endpoint reports.
const HealthStatusHealthy = "healthy"
