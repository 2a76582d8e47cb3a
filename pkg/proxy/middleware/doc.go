// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// # Middleware Chain
//
// The server wraps its route table as:
//
//	handler = Recovery(RequestID(tracing.Middleware(Logging(CORS(mux)))))
//
// Order (outermost first):
//  1. Recovery: turn panics into a 500 JSON error
//  2. RequestID: assign or reuse X-Request-ID and store it in the context
//  3. tracing.Middleware (only when tracing is enabled): server span per request
//  4. Logging: one structured line per request, tagged with the request and trace IDs
//  5. CORS: answer preflights and add CORS headers
//
// TimeoutMiddleware is applied per route to the session and model endpoints
// only. Chat turns are bounded by the backend timeout of their model, and a
// streaming turn may legitimately outlive any fixed request deadline.
//
// # Request ID
//
// RequestIDMiddleware reuses a well-formed client X-Request-ID or generates a
// UUID:
//
//	X-Request-ID: 550e8400-e29b-41d4-a716-446655440000
//
// The ID is stored with logging.WithRequestID so every logger derived with
// logging.FromContext carries it.
//
// # Streaming
//
// The logging wrapper forwards http.Flusher and supports
// http.ResponseController through Unwrap, so SSE frames written by the chat
// handler reach the client immediately.
package middleware
