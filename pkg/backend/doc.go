// Package backend talks to OpenAI-compatible chat completion endpoints.
//
// A Client is bound to one configured model: it knows the endpoint, the model
// name sent on the wire, the API key and the default request options. The
// non-streaming path returns the backend's JSON untouched (decoded into a
// map) so that unknown fields survive the relay. The streaming path returns
// the raw event-stream body for the stream package to reassemble.
//
// A Registry maps the model keys clients select by to Clients and can be
// swapped atomically when the configuration is reloaded.
package backend
