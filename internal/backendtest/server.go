// Package backendtest provides a mock OpenAI-compatible completion backend
// for tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// CompletionsPath is the path the relay posts chat turns to.
const CompletionsPath = "/v1/chat/completions"

// Server is a mock backend. Responses are configured per path; every request
// is recorded so tests can assert on what the relay sent.
type Server struct {
	server    *httptest.Server
	responses map[string]Response
	requests  []Request
	mu        sync.Mutex
}

// Response defines a mock response configuration.
type Response struct {
	StatusCode int
	Body       any
	Delay      time.Duration
	Headers    map[string]string

	// StreamChunks are sent as "data: <chunk>\n\n" frames.
	StreamChunks []string

	// RawStream, when set, is written verbatim in place of StreamChunks.
	RawStream []string

	// OmitDone suppresses the trailing "data: [DONE]" frame.
	OmitDone bool

	// Hold keeps the stream open after the last chunk until the client
	// disconnects.
	Hold bool
}

// Request is one recorded request.
type Request struct {
	Method  string
	Path    string
	Header  http.Header
	Body    map[string]any
	RawBody []byte
}

// NewServer starts a mock backend.
func NewServer() *Server {
	s := &Server{responses: make(map[string]Response)}
	s.server = httptest.NewServer(http.HandlerFunc(s.handler))
	return s
}

// URL returns the server's root URL.
func (s *Server) URL() string {
	return s.server.URL
}

// BaseURL returns the URL a backend client should be configured with.
func (s *Server) BaseURL() string {
	return s.server.URL + "/v1"
}

// Close shuts the server down.
func (s *Server) Close() {
	s.server.CloseClientConnections()
	s.server.Close()
}

// SetResponse sets the response for path.
func (s *Server) SetResponse(path string, response Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = response
}

// RequestCount returns the number of requests received.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request, or false if none arrived.
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:  r.Method,
		Path:    r.URL.Path,
		Header:  r.Header.Clone(),
		Body:    body,
		RawBody: raw,
	})
	response, ok := s.responses[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.StreamChunks) > 0 || len(response.RawStream) > 0 {
		s.handleStream(w, r, response)
		return
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)

	switch v := response.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, response Response) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)

	write := func(p string) bool {
		if _, err := io.WriteString(w, p); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if len(response.RawStream) > 0 {
		for _, piece := range response.RawStream {
			if !write(piece) {
				return
			}
		}
	} else {
		for _, chunk := range response.StreamChunks {
			if !write(fmt.Sprintf("data: %s\n\n", chunk)) {
				return
			}
		}
	}

	if response.Hold {
		<-r.Context().Done()
		return
	}

	if !response.OmitDone {
		write("data: [DONE]\n\n")
	}
}

// CompletionResponse builds a non-streaming chat.completion body.
func CompletionResponse(content, model string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   model,
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}
}

// ContentChunk builds one chat.completion.chunk carrying a content delta.
func ContentChunk(delta string) string {
	return chunk(map[string]any{"content": delta}, nil)
}

// RoleChunk builds the opening chunk that announces the assistant role.
func RoleChunk() string {
	return chunk(map[string]any{"role": "assistant", "content": ""}, nil)
}

// FinishChunk builds an empty delta carrying finish_reason.
func FinishChunk(reason string) string {
	return chunk(map[string]any{}, &reason)
}

// ToolCallChunk builds a chunk carrying one tool-call fragment. Empty
// arguments are left out of the fragment.
func ToolCallChunk(index int, id, name, arguments string) string {
	call := map[string]any{"index": index}
	if id != "" {
		call["id"] = id
		call["type"] = "function"
	}
	fn := map[string]any{}
	if name != "" {
		fn["name"] = name
	}
	if arguments != "" {
		fn["arguments"] = arguments
	}
	call["function"] = fn
	return chunk(map[string]any{"tool_calls": []any{call}}, nil)
}

func chunk(delta map[string]any, finishReason *string) string {
	c := map[string]any{
		"id":      "chatcmpl-123",
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"model":   "mock-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"delta":         delta,
				"finish_reason": finishReason,
			},
		},
	}
	data, _ := json.Marshal(c)
	return string(data)
}

// ErrorResponse creates an OpenAI-style error response.
func ErrorResponse(statusCode int, message string) Response {
	return Response{
		StatusCode: statusCode,
		Body: map[string]any{
			"error": map[string]any{
				"message": message,
				"type":    "server_error",
			},
		},
	}
}
