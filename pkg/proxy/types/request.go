package types

// ChatTurnRequest is the body of POST /chat/completions.
// Every top-level field not listed here is an option forwarded to the
// backend untouched (temperature, max_tokens, tools, ...).
type ChatTurnRequest struct {
	// SessionID names the conversation. Required.
	SessionID string `json:"session_id"`

	// Model is a configured model key. Optional, defaults to the configured
	// default model.
	Model string `json:"model,omitempty"`

	// Messages is the conversation as the client sees it. The last message
	// must come from the user.
	Messages []Message `json:"messages"`

	// Stream enables server-sent events.
	Stream bool `json:"stream,omitempty"`
}

// TurnFields are the ChatTurnRequest keys that are never forwarded as
// backend options.
var TurnFields = []string{"session_id", "model", "messages", "stream"}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the author of the message ("system", "user", "assistant", or "tool").
	Role string `json:"role"`

	// Content is the text content of the message.
	// Can be a string or an array of content parts (for multimodal clients).
	Content interface{} `json:"content"`

	// Name is the name of the author (optional, for user/assistant messages).
	Name string `json:"name,omitempty"`

	// ToolCalls is a list of tool calls made by the assistant (optional).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID is the ID of the tool call this message is responding to (for tool role).
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall represents a function call made by the model.
type ToolCall struct {
	// ID is a unique identifier for the tool call.
	ID string `json:"id"`

	// Type is always "function" for function calling.
	Type string `json:"type"`

	// Function contains the function name and arguments.
	Function FunctionCall `json:"function"`
}

// FunctionCall represents the function name and arguments.
type FunctionCall struct {
	// Name is the name of the function to call.
	Name string `json:"name"`

	// Arguments is a JSON string containing the function arguments.
	Arguments string `json:"arguments"`
}
