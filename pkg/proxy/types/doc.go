// Package types defines the JSON request and response bodies of the relay's
// HTTP API.
//
// Request types:
//   - ChatTurnRequest: body of /chat/completions; unknown fields are options
//   - Message: one message as sent by a client (content may be multimodal)
//
// Response types:
//   - SessionResponse, SessionListResponse: session endpoints
//   - ModelsResponse: configured model catalog
//   - HealthResponse: liveness probe
//
// Error types:
//   - ErrorResponse: OpenAI-compatible error envelope
//   - ErrorDetail: message, type, param, code and, for backend failures, the
//     upstream status and body
//
// Non-streaming chat replies are the backend's own JSON with a session_id
// field added, so no type models them here.
package types
