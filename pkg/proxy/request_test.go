package proxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercator-hq/relay/pkg/chat"
	"mercator-hq/relay/pkg/proxy/types"
)

func TestParseTurnRequest(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantCode  string
		wantParam string
	}{
		{
			name: "minimal turn",
			body: `{"session_id":"s1","messages":[{"role":"user","content":"hi"}]}`,
		},
		{
			name: "streaming turn with model",
			body: `{"session_id":"s1","model":"local","stream":true,"messages":[{"role":"user","content":"hi"}]}`,
		},
		{
			name: "missing session id is left to the relay",
			body: `{"messages":[{"role":"user","content":"hi"}]}`,
		},
		{
			name:      "malformed JSON",
			body:      `{"session_id":`,
			wantErr:   true,
			wantCode:  types.CodeInvalidJSON,
			wantParam: "body",
		},
		{
			name:      "array body",
			body:      `[1,2]`,
			wantErr:   true,
			wantCode:  types.CodeInvalidJSON,
			wantParam: "body",
		},
		{
			name:      "null body",
			body:      `null`,
			wantErr:   true,
			wantCode:  types.CodeInvalidJSON,
			wantParam: "body",
		},
		{
			name:      "stream is not a bool",
			body:      `{"session_id":"s1","stream":"yes","messages":[]}`,
			wantErr:   true,
			wantCode:  types.CodeInvalidJSON,
			wantParam: "stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			_, err := ParseTurnRequest(w, r, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTurnRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("error = %T, want *RequestError", err)
			}
			if reqErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", reqErr.Code, tt.wantCode)
			}
			if reqErr.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", reqErr.Param, tt.wantParam)
			}
		})
	}
}

func TestParseTurnRequest_Options(t *testing.T) {
	body := `{
		"session_id": "s1",
		"model": "local",
		"stream": true,
		"messages": [{"role":"user","content":"hi"}],
		"temperature": 0.7,
		"max_tokens": 128,
		"tools": [{"type":"function","function":{"name":"lookup"}}]
	}`
	r := httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader(body))

	turn, err := ParseTurnRequest(httptest.NewRecorder(), r, 0)
	if err != nil {
		t.Fatalf("ParseTurnRequest() error = %v", err)
	}

	if turn.SessionID != "s1" || turn.Model != "local" || !turn.Stream {
		t.Errorf("turn = %+v, want session s1, model local, stream", turn)
	}
	if len(turn.Options) != 3 {
		t.Fatalf("Options = %v, want 3 entries", turn.Options)
	}
	for _, key := range types.TurnFields {
		if _, ok := turn.Options[key]; ok {
			t.Errorf("Options carries turn field %q", key)
		}
	}
	if got, ok := turn.Options["temperature"].(json.Number); !ok || got.String() != "0.7" {
		t.Errorf("temperature = %#v, want json.Number 0.7", turn.Options["temperature"])
	}
	if got, ok := turn.Options["max_tokens"].(json.Number); !ok || got.String() != "128" {
		t.Errorf("max_tokens = %#v, want json.Number 128", turn.Options["max_tokens"])
	}
}

func TestParseTurnRequest_NoOptions(t *testing.T) {
	body := `{"session_id":"s1","messages":[{"role":"user","content":"hi"}]}`
	r := httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader(body))

	turn, err := ParseTurnRequest(httptest.NewRecorder(), r, 0)
	if err != nil {
		t.Fatalf("ParseTurnRequest() error = %v", err)
	}
	if turn.Options != nil {
		t.Errorf("Options = %v, want nil", turn.Options)
	}
}

func TestParseTurnRequest_BodyLimit(t *testing.T) {
	body := `{"session_id":"s1","messages":[{"role":"user","content":"` + strings.Repeat("x", 256) + `"}]}`
	r := httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader(body))

	_, err := ParseTurnRequest(httptest.NewRecorder(), r, 64)

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
	if reqErr.Code != types.CodeRequestTooLarge {
		t.Errorf("Code = %q, want %q", reqErr.Code, types.CodeRequestTooLarge)
	}
	if got := reqErr.ToErrorResponse().Error.HTTPStatusCode(); got != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", got)
	}
}

func TestConvertMessages(t *testing.T) {
	in := []types.Message{
		{Role: "system", Content: "be brief"},
		{Role: "assistant", Content: nil, ToolCalls: []types.ToolCall{
			{ID: "call_1", Type: "function", Function: types.FunctionCall{Name: "lookup", Arguments: `{"q":"go"}`}},
		}},
		{Role: "tool", Content: "42", ToolCallID: "call_1"},
		{Role: "user", Content: []interface{}{
			map[string]interface{}{"type": "text", "text": "Part 1"},
			map[string]interface{}{"type": "image_url", "image_url": map[string]interface{}{"url": "https://example.com/a.png"}},
			map[string]interface{}{"type": "text", "text": "Part 2"},
		}},
	}

	got := ConvertMessages(in)
	want := []chat.Message{
		{Role: "system", Content: "be brief"},
		{Role: "assistant", ToolCalls: []chat.ToolCall{
			{Index: 0, ID: "call_1", Type: "function", Function: chat.FunctionCall{Name: "lookup", Arguments: `{"q":"go"}`}},
		}},
		{Role: "tool", Content: "42", ToolCallID: "call_1"},
		{Role: "user", Content: "Part 1 Part 2"},
	}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		gotJSON, _ := json.Marshal(got[i])
		wantJSON, _ := json.Marshal(want[i])
		if string(gotJSON) != string(wantJSON) {
			t.Errorf("message %d = %s, want %s", i, gotJSON, wantJSON)
		}
	}
}

func TestConvertMessageContent(t *testing.T) {
	tests := []struct {
		name    string
		content interface{}
		want    string
	}{
		{name: "string content", content: "Hello, world!", want: "Hello, world!"},
		{name: "nil content", content: nil, want: ""},
		{
			name: "only images",
			content: []interface{}{
				map[string]interface{}{"type": "image_url"},
			},
			want: "",
		},
		{name: "number content", content: 42.0, want: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertMessageContent(tt.content); got != tt.want {
				t.Errorf("ConvertMessageContent() = %q, want %q", got, tt.want)
			}
		})
	}
}
