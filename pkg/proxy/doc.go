// Package proxy holds the HTTP transport of the chat relay.
//
// The package parses chat turn requests, writes JSON replies and Server-Sent
// Events, and converts errors to the OpenAI error envelope. Endpoint handlers
// live in the handlers subpackage, cross-cutting concerns in middleware and
// wire bodies in types.
//
// # Request Flow
//
//  1. Client sends a turn to /chat/completions (or /v1/chat/completions)
//  2. Middleware chain processes request (recovery → requestID → tracing → logging → CORS → timeout)
//  3. ParseTurnRequest reads the body; unknown fields become backend options
//  4. The relay validates the turn, calls the backend and persists the session
//  5. The reply is written as JSON or as an event stream
//
// # Streaming
//
// A streaming turn is answered with one JSON event per SSE frame, closed by
// the literal [DONE] marker:
//
//	data: {"type":"session","session_id":"s1"}
//
//	data: {"type":"delta","content":"He","raw":{...}}
//
//	data: {"type":"delta","content":"llo","raw":{...}}
//
//	data: {"type":"done","session_id":"s1","message":{"role":"assistant","content":"Hello"},"reason":"stop"}
//
//	data: [DONE]
//
// A backend failure replaces the deltas with an error event carrying the
// upstream status and body, followed by a done event with reason "error".
//
// # Error Handling
//
// All JSON errors follow the OpenAI error response format:
//
//	{
//	  "error": {
//	    "message": "session_id is required",
//	    "type": "invalid_request_error",
//	    "param": "session_id",
//	    "code": "missing_field"
//	  }
//	}
//
// Backend failures add upstream_status and upstream_body to the error object.
package proxy
