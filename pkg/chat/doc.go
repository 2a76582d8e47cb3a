// Package chat defines the conversation data model shared by the relay
// components: messages, tool calls, the error taxonomy, and the normalizer
// that turns an incoming client turn into the message list sent upstream.
//
// # Roles
//
// A message role is one of system, user, assistant, or tool. The last message
// of every client turn must have the user role; anything else is rejected with
// a ValidationError before the backend is contacted.
//
// # Tool Calls
//
// Assistant messages may carry tool calls. During streaming the calls arrive as
// fragments keyed by index; see package stream for how they are merged. Once a
// message is complete its ToolCalls slice is either nil or non-empty, never an
// explicit empty list.
//
// # Errors
//
// Three error kinds cross component boundaries:
//
//   - ValidationError: the request is malformed; no backend call was made.
//   - BackendError: the backend was unreachable, answered with a non-success
//     status, or returned an undecodable body.
//   - PersistenceError: writing a session to durable storage failed. The turn
//     itself already succeeded from the client's point of view.
package chat
