// Package server provides the HTTP server of the chat relay.
//
// The server ties the transport packages to the relay components: it builds
// the route table, wraps it in the middleware chain and manages the listener
// lifecycle.
//
// # Basic Usage
//
//	srv := server.NewServer(cfg, server.Dependencies{
//	    Relay:    relay.New(store, registry, relay.Options{Metrics: collector}),
//	    Sessions: store,
//	    Models:   registry,
//	    Metrics:  collector,
//	    Version:  health.NewVersionInfo(version, commit, buildDate),
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until ctx is cancelled or Stop is called, then shuts down.
//
// # Routes
//
//   - POST /chat/completions, POST /v1/chat/completions - chat turn (JSON or SSE)
//   - GET /ws - chat turns over a WebSocket, when server.websocket.enabled
//   - POST /sessions - create a session
//   - GET /sessions - list session ids
//   - GET /sessions/{id} - session history
//   - GET /models - configured model keys and the default
//   - GET /health - liveness (always 200)
//   - GET /ready - readiness (session storage and model catalog)
//   - GET /version - build information
//   - GET /metrics - Prometheus exposition, when enabled
//   - GET /, /chat.html, /chat.css, /chat.js - chat page, when ui.static_dir is set
//
// The session and model routes run under server.request_timeout. Chat turns
// do not: a streaming turn may legitimately run for minutes and is bounded
// by its model's backend timeout instead.
//
// # Graceful Shutdown
//
// Shutdown stops accepting connections and waits up to
// server.shutdown_timeout for in-flight requests. After that the base
// context of every request is cancelled; streaming turns then finish with
// reason "canceled" and persist their partial reply before the connection
// is closed.
package server
