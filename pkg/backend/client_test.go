package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"mercator-hq/relay/internal/backendtest"
	"mercator-hq/relay/pkg/chat"
)

func newTestClient(t *testing.T, server *backendtest.Server, mutate func(*Config)) *Client {
	t.Helper()

	cfg := Config{
		Key:          "local",
		ModelName:    "mock-model",
		BaseURL:      server.BaseURL(),
		Options:      map[string]any{"temperature": 0.2},
		Timeout:      5 * time.Second,
		RetryBackoff: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestClient_Complete(t *testing.T) {
	server := backendtest.NewServer()
	defer server.Close()

	server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode: http.StatusOK,
		Body:       backendtest.CompletionResponse("hello", "mock-model"),
	})

	client := newTestClient(t, server, func(c *Config) { c.APIKey = "sk-test" })

	result, err := client.Complete(context.Background(),
		[]chat.Message{{Role: chat.RoleUser, Content: "hi"}},
		map[string]any{"max_tokens": 16, "model": "ignored", "stream": true},
	)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if result["id"] != "chatcmpl-123" {
		t.Errorf("result id = %v, want chatcmpl-123", result["id"])
	}

	req, ok := server.LastRequest()
	if !ok {
		t.Fatal("backend received no request")
	}
	if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer sk-test")
	}
	if req.Body["model"] != "mock-model" {
		t.Errorf("model = %v, want mock-model", req.Body["model"])
	}
	if _, ok := req.Body["stream"]; ok {
		t.Error("non-streaming request carries a stream field")
	}
	if req.Body["temperature"] != 0.2 {
		t.Errorf("temperature = %v, want default 0.2", req.Body["temperature"])
	}
	if req.Body["max_tokens"] != float64(16) {
		t.Errorf("max_tokens = %v, want 16", req.Body["max_tokens"])
	}
	msgs, _ := req.Body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v, want one message", req.Body["messages"])
	}
}

func TestClient_NoAuthHeaderWithoutKey(t *testing.T) {
	server := backendtest.NewServer()
	defer server.Close()

	server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		Body: backendtest.CompletionResponse("hello", "mock-model"),
	})

	client := newTestClient(t, server, nil)
	if _, err := client.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	req, _ := server.LastRequest()
	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want none", got)
	}
}

func TestClient_CompleteClientErrorNotRetried(t *testing.T) {
	server := backendtest.NewServer()
	defer server.Close()

	server.SetResponse(backendtest.CompletionsPath, backendtest.ErrorResponse(http.StatusBadRequest, "bad input"))

	client := newTestClient(t, server, func(c *Config) { c.MaxRetries = 3 })

	_, err := client.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil)

	var be *chat.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("Complete() error = %v, want BackendError", err)
	}
	if be.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", be.StatusCode)
	}
	if !strings.Contains(be.Body, "bad input") {
		t.Errorf("Body = %q, want backend error body", be.Body)
	}
	if n := server.RequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1", n)
	}
}

func TestClient_CompleteServerErrorRetried(t *testing.T) {
	server := backendtest.NewServer()
	defer server.Close()

	server.SetResponse(backendtest.CompletionsPath, backendtest.ErrorResponse(http.StatusServiceUnavailable, "overloaded"))

	client := newTestClient(t, server, func(c *Config) { c.MaxRetries = 2 })

	_, err := client.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil)

	var be *chat.BackendError
	if !errors.As(err, &be) || be.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Complete() error = %v, want 503 BackendError", err)
	}
	if n := server.RequestCount(); n != 3 {
		t.Errorf("request count = %d, want 3", n)
	}
}

func TestClient_CompleteMalformedBody(t *testing.T) {
	server := backendtest.NewServer()
	defer server.Close()

	server.SetResponse(backendtest.CompletionsPath, backendtest.Response{Body: "not json"})

	client := newTestClient(t, server, nil)
	_, err := client.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil)

	var be *chat.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("Complete() error = %v, want BackendError", err)
	}
	if be.Body != "not json" {
		t.Errorf("Body = %q, want raw body", be.Body)
	}
}

func TestClient_CompleteTimeout(t *testing.T) {
	server := backendtest.NewServer()
	defer server.Close()

	server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		Body:  backendtest.CompletionResponse("late", "mock-model"),
		Delay: time.Second,
	})

	client := newTestClient(t, server, func(c *Config) { c.Timeout = 50 * time.Millisecond })

	_, err := client.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil)

	var be *chat.BackendError
	if !errors.As(err, &be) || !be.Timeout {
		t.Fatalf("Complete() error = %v, want timeout BackendError", err)
	}
}

func TestClient_Stream(t *testing.T) {
	server := backendtest.NewServer()
	defer server.Close()

	server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StreamChunks: []string{backendtest.ContentChunk("He"), backendtest.ContentChunk("llo")},
	})

	client := newTestClient(t, server, nil)

	resp, err := client.Stream(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer resp.Body.Close()

	if !resp.OK() {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.HasSuffix(string(body), "data: [DONE]\n\n") {
		t.Errorf("body does not end with terminator: %q", body)
	}

	req, _ := server.LastRequest()
	if req.Body["stream"] != true {
		t.Errorf("stream = %v, want true", req.Body["stream"])
	}
	if got := req.Header.Get("Accept"); got != "text/event-stream" {
		t.Errorf("Accept = %q, want text/event-stream", got)
	}
}

func TestClient_StreamErrorStatus(t *testing.T) {
	server := backendtest.NewServer()
	defer server.Close()

	server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"boom"}`,
	})

	client := newTestClient(t, server, func(c *Config) { c.MaxRetries = 3 })

	resp, err := client.Stream(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Stream() error = %v, want nil", err)
	}
	if resp.OK() || resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
	if resp.ErrorBody != `{"error":"boom"}` {
		t.Errorf("ErrorBody = %q", resp.ErrorBody)
	}
	if n := server.RequestCount(); n != 1 {
		t.Errorf("request count = %d, want a single attempt", n)
	}
}

func TestClient_StreamUnreachable(t *testing.T) {
	server := backendtest.NewServer()
	baseURL := server.BaseURL()
	server.Close()

	client, err := NewClient(Config{Key: "gone", ModelName: "m", BaseURL: baseURL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Stream(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil)
	var be *chat.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("Stream() error = %v, want BackendError", err)
	}
}

func TestToWireMessages_DropsBookkeeping(t *testing.T) {
	wire := toWireMessages([]chat.Message{{
		Role:         chat.RoleAssistant,
		FinishReason: "tool_calls",
		ToolCalls: []chat.ToolCall{
			{Index: 0, ID: "c1", Function: chat.FunctionCall{Name: "f", Arguments: "{}"}},
		},
	}})

	if len(wire) != 1 || len(wire[0].ToolCalls) != 1 {
		t.Fatalf("toWireMessages() = %+v", wire)
	}
	if wire[0].ToolCalls[0].Type != chat.ToolTypeFunction {
		t.Errorf("tool type = %q, want function", wire[0].ToolCalls[0].Type)
	}
}

func TestToWireMessages_SkipsGapPlaceholders(t *testing.T) {
	stored := []chat.Message{{
		Role: chat.RoleAssistant,
		ToolCalls: []chat.ToolCall{
			{Index: 0, ID: "a", Function: chat.FunctionCall{Name: "first", Arguments: "{}"}},
			{Index: 1},
			{Index: 2, ID: "c", Function: chat.FunctionCall{Name: "third", Arguments: "{}"}},
		},
	}, {
		Role:      chat.RoleAssistant,
		ToolCalls: []chat.ToolCall{{Index: 0}},
	}}

	wire := toWireMessages(stored)

	if got := len(wire[0].ToolCalls); got != 2 {
		t.Fatalf("sent %d tool calls, want 2: %+v", got, wire[0].ToolCalls)
	}
	if wire[0].ToolCalls[0].ID != "a" || wire[0].ToolCalls[1].ID != "c" {
		t.Errorf("tool call ids = %q, %q", wire[0].ToolCalls[0].ID, wire[0].ToolCalls[1].ID)
	}
	if wire[1].ToolCalls != nil {
		t.Errorf("all-placeholder list sent as %+v, want omitted", wire[1].ToolCalls)
	}
	if len(stored[0].ToolCalls) != 3 {
		t.Error("stored history was modified")
	}
}
