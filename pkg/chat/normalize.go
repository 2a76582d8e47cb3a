package chat

import "fmt"

// Normalize builds the message list to send to the backend for one turn.
//
// history is the stored session history and incoming is the client's message
// list (conversation so far plus one new user message). The result is a new
// slice; history is never modified in place.
//
// When history is empty the whole incoming list seeds the conversation. When
// history already holds messages it is authoritative and only the final user
// message from incoming is appended.
//
// Empty tool-call lists are stripped from every message because some backends
// reject an explicit empty list where an absent field is expected.
func Normalize(history, incoming []Message) ([]Message, error) {
	if err := ValidateIncoming(incoming); err != nil {
		return nil, err
	}

	var out []Message
	if len(history) == 0 {
		out = make([]Message, 0, len(incoming))
		for _, m := range incoming {
			out = append(out, stripEmptyToolCalls(m.Clone()))
		}
		return out, nil
	}

	out = make([]Message, 0, len(history)+1)
	for _, m := range history {
		out = append(out, stripEmptyToolCalls(m.Clone()))
	}
	out = append(out, stripEmptyToolCalls(incoming[len(incoming)-1].Clone()))
	return out, nil
}

// ValidateIncoming checks the shape of a client message list: it must be
// non-empty, every role must be known, and the last message must come from
// the user.
func ValidateIncoming(incoming []Message) error {
	if len(incoming) == 0 {
		return &ValidationError{Field: "messages", Message: "messages must not be empty"}
	}

	for i, m := range incoming {
		if !IsValidRole(m.Role) {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: fmt.Sprintf("unsupported role %q", m.Role),
			}
		}
	}

	if last := incoming[len(incoming)-1]; last.Role != RoleUser {
		return &ValidationError{
			Field:   "messages",
			Message: fmt.Sprintf("last message must have role %q, got %q", RoleUser, last.Role),
		}
	}

	return nil
}

func stripEmptyToolCalls(m Message) Message {
	if len(m.ToolCalls) == 0 {
		m.ToolCalls = nil
	}
	return m
}
