package relay

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/relay/internal/backendtest"
	"mercator-hq/relay/pkg/backend"
	"mercator-hq/relay/pkg/chat"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/session"
	"mercator-hq/relay/pkg/stream"
	"mercator-hq/relay/pkg/telemetry/tracing"
)

type fixture struct {
	server  *backendtest.Server
	backend *session.MemoryBackend
	store   *session.Store
	orch    *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	server := backendtest.NewServer()
	t.Cleanup(server.Close)

	mem := session.NewMemoryBackend()
	store, err := session.Open(context.Background(), mem)
	require.NoError(t, err)

	registry, err := backend.NewRegistry([]backend.Config{{
		Key:          "local",
		ModelName:    "mock-model",
		BaseURL:      server.BaseURL(),
		Timeout:      5 * time.Second,
		RetryBackoff: time.Millisecond,
	}}, "local")
	require.NoError(t, err)

	return &fixture{
		server:  server,
		backend: mem,
		store:   store,
		orch:    New(store, registry, Options{ReadSize: 16}),
	}
}

func userTurn(sessionID, content string, streaming bool) *TurnRequest {
	return &TurnRequest{
		SessionID: sessionID,
		Messages:  []chat.Message{{Role: chat.RoleUser, Content: content}},
		Stream:    streaming,
	}
}

func collect(t *testing.T, events <-chan stream.Event) []stream.Event {
	t.Helper()

	var out []stream.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
			return out
		}
	}
}

func TestHandleTurn_ValidationMakesNoBackendCall(t *testing.T) {
	tests := []struct {
		name  string
		req   *TurnRequest
		param string
		code  string
	}{
		{
			name:  "missing session id",
			req:   &TurnRequest{Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi"}}},
			param: "session_id",
			code:  types.CodeMissingField,
		},
		{
			name:  "path traversal session id",
			req:   userTurn("../etc/passwd", "hi", false),
			param: "session_id",
			code:  types.CodeInvalidValue,
		},
		{
			name:  "empty messages",
			req:   &TurnRequest{SessionID: "s1"},
			param: "messages",
			code:  types.CodeInvalidValue,
		},
		{
			name: "last message not from user",
			req: &TurnRequest{SessionID: "s1", Messages: []chat.Message{
				{Role: chat.RoleUser, Content: "hi"},
				{Role: chat.RoleAssistant, Content: "hello"},
			}},
			param: "messages",
			code:  types.CodeInvalidValue,
		},
		{
			name:  "unknown role",
			req:   &TurnRequest{SessionID: "s1", Messages: []chat.Message{{Role: "robot", Content: "hi"}}},
			param: "messages[0].role",
			code:  types.CodeInvalidValue,
		},
		{
			name:  "unknown model",
			req:   &TurnRequest{SessionID: "s1", Model: "nope", Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi"}}},
			param: "model",
			code:  types.CodeModelNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			for _, streaming := range []bool{false, true} {
				req := *tt.req
				req.Stream = streaming

				resp := f.orch.HandleTurn(context.Background(), &req)
				require.Equal(t, http.StatusBadRequest, resp.Status)
				assert.False(t, resp.Streaming())

				body, ok := resp.Body.(*types.ErrorResponse)
				require.True(t, ok, "body is %T", resp.Body)
				assert.Equal(t, types.ErrorTypeInvalidRequest, body.Error.Type)
				assert.Equal(t, tt.param, body.Error.Param)
				assert.Equal(t, tt.code, body.Error.Code)
			}

			assert.Zero(t, f.server.RequestCount())
			assert.Zero(t, f.backend.SaveCount())
		})
	}
}

func TestHandleTurn_NonStreaming(t *testing.T) {
	f := newFixture(t)
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode: http.StatusOK,
		Body:       backendtest.CompletionResponse("hello", "mock-model"),
	})

	resp := f.orch.HandleTurn(context.Background(), userTurn("s1", "hi", false))
	require.Equal(t, http.StatusOK, resp.Status)
	require.NoError(t, resp.Err)

	body, ok := resp.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "s1", body["session_id"])
	assert.Equal(t, "chatcmpl-123", body["id"])

	history, err := f.store.Load("s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, chat.Message{Role: chat.RoleUser, Content: "hi"}, history[0])
	assert.Equal(t, chat.RoleAssistant, history[1].Role)
	assert.Equal(t, "hello", history[1].Content)
	assert.Equal(t, chat.FinishReasonStop, history[1].FinishReason)

	persisted, ok := f.backend.Get("s1")
	require.True(t, ok)
	assert.Equal(t, history, persisted)
}

func TestHandleTurn_StoredHistoryIsAuthoritative(t *testing.T) {
	f := newFixture(t)
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode: http.StatusOK,
		Body:       backendtest.CompletionResponse("hello", "mock-model"),
	})

	resp := f.orch.HandleTurn(context.Background(), userTurn("s1", "hi", false))
	require.Equal(t, http.StatusOK, resp.Status)

	second := &TurnRequest{
		SessionID: "s1",
		Messages: []chat.Message{
			{Role: chat.RoleUser, Content: "something the client made up"},
			{Role: chat.RoleUser, Content: "again"},
		},
	}
	resp = f.orch.HandleTurn(context.Background(), second)
	require.Equal(t, http.StatusOK, resp.Status)

	last, ok := f.server.LastRequest()
	require.True(t, ok)
	sent, ok := last.Body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, sent, 3)

	var contents []any
	for _, m := range sent {
		contents = append(contents, m.(map[string]any)["content"])
	}
	assert.Equal(t, []any{"hi", "hello", "again"}, contents)

	history, err := f.store.Load("s1")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestHandleTurn_BackendErrorLeavesSessionUnchanged(t *testing.T) {
	f := newFixture(t)
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.ErrorResponse(http.StatusBadRequest, "context too long"))

	resp := f.orch.HandleTurn(context.Background(), userTurn("s1", "hi", false))
	require.Equal(t, http.StatusBadGateway, resp.Status)

	body, ok := resp.Body.(*types.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeBadGateway, body.Error.Type)
	assert.Equal(t, http.StatusBadRequest, body.Error.UpstreamStatus)
	assert.Contains(t, body.Error.UpstreamBody, "context too long")

	_, err := f.store.Load("s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Zero(t, f.backend.SaveCount())
}

func TestHandleTurn_BackendTimeoutMapsTo504(t *testing.T) {
	f := newFixture(t)
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode: http.StatusOK,
		Body:       backendtest.CompletionResponse("late", "mock-model"),
		Delay:      time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp := f.orch.HandleTurn(ctx, userTurn("s1", "hi", false))
	assert.Equal(t, http.StatusGatewayTimeout, resp.Status)

	_, err := f.store.Load("s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestHandleTurn_Streaming(t *testing.T) {
	f := newFixture(t)
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode: http.StatusOK,
		StreamChunks: []string{
			backendtest.RoleChunk(),
			backendtest.ContentChunk("He"),
			backendtest.ContentChunk("llo"),
			backendtest.FinishChunk("stop"),
		},
	})

	resp := f.orch.HandleTurn(context.Background(), userTurn("s1", "hi", true))
	require.Equal(t, http.StatusOK, resp.Status)
	require.True(t, resp.Streaming())

	events := collect(t, resp.Events)
	require.GreaterOrEqual(t, len(events), 4)

	assert.Equal(t, stream.EventSession, events[0].Type)
	assert.Equal(t, "s1", events[0].SessionID)

	var fragments []string
	for _, ev := range events[1 : len(events)-1] {
		require.Equal(t, stream.EventDelta, ev.Type)
		if ev.Content != "" {
			fragments = append(fragments, ev.Content)
		}
	}
	assert.Equal(t, []string{"He", "llo"}, fragments)

	done := events[len(events)-1]
	require.Equal(t, stream.EventDone, done.Type)
	assert.Equal(t, stream.ReasonStop, done.Reason)
	assert.Equal(t, "s1", done.SessionID)
	require.NotNil(t, done.Message)
	assert.Equal(t, "Hello", done.Message.Content)

	persisted, ok := f.backend.Get("s1")
	require.True(t, ok)
	require.Len(t, persisted, 2)
	assert.Equal(t, "hi", persisted[0].Content)
	assert.Equal(t, "Hello", persisted[1].Content)
	assert.Equal(t, chat.RoleAssistant, persisted[1].Role)
}

func TestHandleTurn_StreamingToolCalls(t *testing.T) {
	f := newFixture(t)
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode: http.StatusOK,
		StreamChunks: []string{
			backendtest.ToolCallChunk(0, "call_1", "lookup", `{"q":`),
			backendtest.ToolCallChunk(0, "", "", `"go"}`),
			backendtest.FinishChunk("tool_calls"),
		},
	})

	resp := f.orch.HandleTurn(context.Background(), userTurn("s1", "search", true))
	events := collect(t, resp.Events)

	done := events[len(events)-1]
	require.Equal(t, stream.EventDone, done.Type)
	require.NotNil(t, done.Message)
	require.Len(t, done.Message.ToolCalls, 1)
	assert.Equal(t, "lookup", done.Message.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"q":"go"}`, done.Message.ToolCalls[0].Function.Arguments)
	assert.Equal(t, chat.FinishReasonToolCalls, done.Message.FinishReason)
}

func TestHandleTurn_StreamingImplicitCompletion(t *testing.T) {
	f := newFixture(t)
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode:   http.StatusOK,
		StreamChunks: []string{backendtest.ContentChunk("partial")},
		OmitDone:     true,
	})

	resp := f.orch.HandleTurn(context.Background(), userTurn("s1", "hi", true))
	events := collect(t, resp.Events)

	done := events[len(events)-1]
	require.Equal(t, stream.EventDone, done.Type)
	assert.Equal(t, stream.ReasonEOF, done.Reason)
	assert.Equal(t, "partial", done.Message.Content)

	persisted, ok := f.backend.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "partial", persisted[1].Content)
}

func TestHandleTurn_StreamingBackendError(t *testing.T) {
	f := newFixture(t)
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.ErrorResponse(http.StatusServiceUnavailable, "overloaded"))

	resp := f.orch.HandleTurn(context.Background(), userTurn("s1", "hi", true))
	require.Equal(t, http.StatusOK, resp.Status)

	events := collect(t, resp.Events)
	require.Len(t, events, 3)
	assert.Equal(t, stream.EventSession, events[0].Type)

	assert.Equal(t, stream.EventError, events[1].Type)
	assert.Equal(t, http.StatusServiceUnavailable, events[1].Status)
	assert.Contains(t, events[1].Body, "overloaded")

	assert.Equal(t, stream.EventDone, events[2].Type)
	assert.Equal(t, stream.ReasonError, events[2].Reason)

	assert.Equal(t, 1, f.server.RequestCount(), "streaming requests are not retried")
	_, ok := f.backend.Get("s1")
	assert.False(t, ok)
}

func TestHandleTurn_StreamingCancelPersistsPartial(t *testing.T) {
	f := newFixture(t)
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode:   http.StatusOK,
		StreamChunks: []string{backendtest.ContentChunk("He")},
		Hold:         true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := f.orch.HandleTurn(ctx, userTurn("s1", "hi", true))
	require.True(t, resp.Streaming())

	first := <-resp.Events
	require.Equal(t, stream.EventSession, first.Type)

	select {
	case ev := <-resp.Events:
		require.Equal(t, stream.EventDelta, ev.Type)
		assert.Equal(t, "He", ev.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("no delta before cancel")
	}

	cancel()
	collect(t, resp.Events)

	persisted, ok := f.backend.Get("s1")
	require.True(t, ok, "partial turn was not persisted")
	require.Len(t, persisted, 2)
	assert.Equal(t, "He", persisted[1].Content)
}

func TestHandleTurn_PersistFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.backend.SaveErr = assert.AnError
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode: http.StatusOK,
		Body:       backendtest.CompletionResponse("hello", "mock-model"),
	})

	resp := f.orch.HandleTurn(context.Background(), userTurn("s1", "hi", false))
	require.Equal(t, http.StatusOK, resp.Status)

	history, err := f.store.Load("s1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestHandleTurn_SameSessionTurnsAreSerialized(t *testing.T) {
	f := newFixture(t)
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode: http.StatusOK,
		Body:       backendtest.CompletionResponse("hello", "mock-model"),
		Delay:      20 * time.Millisecond,
	})

	const turns = 4
	done := make(chan int, turns)
	for i := 0; i < turns; i++ {
		go func() {
			done <- f.orch.HandleTurn(context.Background(), userTurn("s1", "hi", false)).Status
		}()
	}
	for i := 0; i < turns; i++ {
		assert.Equal(t, http.StatusOK, <-done)
	}

	history, err := f.store.Load("s1")
	require.NoError(t, err)
	assert.Len(t, history, 2*turns, "every turn extended the history written by the previous one")
}

func TestHandleTurn_ReplyWithoutChoicesIsRelayed(t *testing.T) {
	f := newFixture(t)
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StatusCode: http.StatusOK,
		Body:       map[string]any{"id": "x", "choices": []any{}},
	})

	resp := f.orch.HandleTurn(context.Background(), userTurn("s1", "hi", false))
	require.Equal(t, http.StatusOK, resp.Status)

	body, ok := resp.Body.(map[string]any)
	require.True(t, ok, "body = %T", resp.Body)
	assert.Equal(t, "x", body["id"])
	assert.Equal(t, "s1", body["session_id"])
	assert.Equal(t, []any{}, body["choices"])

	_, err := f.store.Load("s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Zero(t, f.backend.SaveCount())
}

func TestFirstChoiceMessage(t *testing.T) {
	msg, err := firstChoiceMessage(map[string]any{
		"choices": []any{map[string]any{
			"message": map[string]any{
				"role":       "assistant",
				"content":    nil,
				"tool_calls": []any{},
			},
			"finish_reason": "length",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, chat.Message{Role: chat.RoleAssistant, FinishReason: chat.FinishReasonLength}, msg)

	_, err = firstChoiceMessage(map[string]any{"choices": []any{}})
	assert.Error(t, err)

	_, err = firstChoiceMessage(map[string]any{})
	assert.Error(t, err)
}

func TestHandleTurn_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := tracing.New(&config.TracingConfig{
		Enabled:  true,
		Sampler:  tracing.SamplerAlways,
		Exporter: "otlp",
	}, "test", tracing.WithExporter(exporter))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tracer.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	f := newFixture(t)
	f.orch.tracer = tracer
	f.server.SetResponse(backendtest.CompletionsPath, backendtest.Response{
		StreamChunks: []string{
			backendtest.RoleChunk(),
			backendtest.ContentChunk("Hi"),
			backendtest.FinishChunk("stop"),
		},
	})

	resp := f.orch.HandleTurn(context.Background(), userTurn("traced", "hello", true))
	require.True(t, resp.Streaming())
	collect(t, resp.Events)

	spans := exporter.GetSpans()
	byName := make(map[string]tracetest.SpanStub)
	for _, s := range spans {
		byName[s.Name] = s
	}
	turnSpan, ok := byName["relay.turn"]
	require.True(t, ok, "turn span recorded")
	backendSpan, ok := byName["backend.chat_completions"]
	require.True(t, ok, "backend span recorded")

	assert.Equal(t, turnSpan.SpanContext.SpanID(), backendSpan.Parent.SpanID())

	attrs := make(map[string]any)
	for _, kv := range turnSpan.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "traced", attrs["relay.session_id"])
	assert.Equal(t, "local", attrs["relay.model"])
	assert.Equal(t, "stop", attrs["relay.finish_reason"])

	last, ok := f.server.LastRequest()
	require.True(t, ok)
	assert.Contains(t, last.Header.Get("traceparent"), turnSpan.SpanContext.TraceID().String())
}
