package chat

// Message is a single conversation message in the relay's internal form.
type Message struct {
	// Role identifies the message sender (system, user, assistant, tool).
	Role string `json:"role"`

	// Content is the message text. It may be empty for a tool-only
	// assistant turn.
	Content string `json:"content"`

	// Name is an optional participant name, passed through untouched.
	Name string `json:"name,omitempty"`

	// ToolCalls holds the tool invocations requested by an assistant turn.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// FinishReason is set when the backend signals turn completion.
	FinishReason string `json:"finish_reason,omitempty"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	// Index is the backend-assigned position within the turn's tool-call list.
	Index int `json:"index"`

	// ID is the call identifier.
	ID string `json:"id"`

	// Type is the call type (currently always "function").
	Type string `json:"type"`

	// Function carries the function name and its JSON-encoded arguments.
	Function FunctionCall `json:"function"`
}

// FunctionCall is the function part of a ToolCall.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
)

// ToolTypeFunction is the only tool type defined by the chat completions API.
const ToolTypeFunction = "function"

// IsValidRole reports whether role is one the relay accepts from clients.
func IsValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	if m.ToolCalls != nil {
		calls := make([]ToolCall, len(m.ToolCalls))
		copy(calls, m.ToolCalls)
		m.ToolCalls = calls
	}
	return m
}

// CloneMessages returns a deep copy of msgs. A nil input yields an empty,
// non-nil slice so callers can append without aliasing.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
