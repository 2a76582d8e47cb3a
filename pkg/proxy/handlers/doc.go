// Package handlers provides the HTTP endpoint handlers of the relay.
//
// # Handlers
//
// Chat:
//   - ChatHandler: POST /chat/completions and /v1/chat/completions; answers
//     with JSON or with an SSE event stream depending on the turn's stream flag
//   - WebSocketHandler: GET /ws; one turn per text message, each event sent
//     as a JSON message
//
// Sessions:
//   - SessionsHandler.Create: POST /sessions
//   - SessionsHandler.List: GET /sessions
//   - SessionsHandler.Get: GET /sessions/{id}
//
// Other:
//   - ModelsHandler: GET /models, the configured model catalog
//   - HealthHandler: GET /health, always {"status":"healthy"}
//   - StaticHandler: GET /, /chat.html, /chat.css, /chat.js
//
// Handlers depend on small interfaces (TurnRunner, SessionStore,
// ModelCatalog) rather than on concrete types, so tests can substitute
// fakes.
//
// # Error Handling
//
// Every error is written in the OpenAI error format through
// proxy.WriteErrorResponse. A stream that has already started reports
// backend failures as error events instead.
package handlers
