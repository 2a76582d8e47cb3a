package backend

import (
	"mercator-hq/relay/pkg/chat"
)

// wireMessage is a chat message as the completions API accepts it. Stored
// bookkeeping (finish_reason, tool-call index) is not sent.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Function chat.FunctionCall `json:"function"`
}

func toWireMessages(messages []chat.Message) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		out[i] = wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		var calls []wireToolCall
		for _, tc := range m.ToolCalls {
			if isPlaceholder(tc) {
				continue
			}
			typ := tc.Type
			if typ == "" {
				typ = chat.ToolTypeFunction
			}
			calls = append(calls, wireToolCall{ID: tc.ID, Type: typ, Function: tc.Function})
		}
		out[i].ToolCalls = calls
	}
	return out
}

// isPlaceholder reports whether tc only fills an index gap in a stored
// tool-call list. Placeholders stay in history but are never sent.
func isPlaceholder(tc chat.ToolCall) bool {
	return tc.ID == "" && tc.Type == "" && tc.Function.Name == "" && tc.Function.Arguments == ""
}

// buildRequestBody assembles the JSON request: merged options first, then
// the fields the relay owns.
func buildRequestBody(modelName string, messages []chat.Message, defaults, options map[string]any, stream bool) map[string]any {
	body := MergeOptions(defaults, options)
	body["model"] = modelName
	body["messages"] = toWireMessages(messages)
	if stream {
		body["stream"] = true
	}
	return body
}
