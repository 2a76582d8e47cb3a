package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mercator-hq/relay/pkg/chat"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/relay"
)

const (
	// DefaultMaxBodyBytes is the request body limit used when none is configured (10MB).
	DefaultMaxBodyBytes = 10 * 1024 * 1024

	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"
)

// ParseTurnRequest reads a chat turn from r. The body is limited to maxBytes
// (DefaultMaxBodyBytes when <= 0). Fields other than session_id, model,
// messages and stream are returned as backend options.
//
// Only the JSON shape is checked here; message semantics are validated by the
// relay.
func ParseTurnRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (*relay.TurnRequest, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &RequestError{
				Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", maxBytes),
				Code:    types.CodeRequestTooLarge,
				Param:   "body",
				Status:  http.StatusRequestEntityTooLarge,
			}
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return DecodeTurnRequest(body)
}

// DecodeTurnRequest decodes a chat turn from a JSON object. It is the body
// half of ParseTurnRequest, used directly for WebSocket messages.
func DecodeTurnRequest(body []byte) (*relay.TurnRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("body must be a JSON object")
		}
		return nil, invalidJSON("body", err)
	}

	var turn types.ChatTurnRequest
	if err := json.Unmarshal(body, &turn); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, invalidJSON(typeErr.Field, err)
		}
		return nil, invalidJSON("body", err)
	}

	options, err := extractOptions(fields)
	if err != nil {
		return nil, err
	}

	return &relay.TurnRequest{
		SessionID: turn.SessionID,
		Model:     turn.Model,
		Messages:  ConvertMessages(turn.Messages),
		Stream:    turn.Stream,
		Options:   options,
	}, nil
}

// extractOptions decodes every non-turn field. Numbers keep their literal
// form so they are forwarded exactly as received.
func extractOptions(fields map[string]json.RawMessage) (map[string]any, error) {
	for _, key := range types.TurnFields {
		delete(fields, key)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	options := make(map[string]any, len(fields))
	for key, raw := range fields {
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()

		var value any
		if err := decoder.Decode(&value); err != nil {
			return nil, invalidJSON(key, err)
		}
		options[key] = value
	}
	return options, nil
}

// ConvertMessages converts client messages to the relay's internal form.
func ConvertMessages(messages []types.Message) []chat.Message {
	if messages == nil {
		return nil
	}

	out := make([]chat.Message, 0, len(messages))
	for _, msg := range messages {
		converted := chat.Message{
			Role:       msg.Role,
			Content:    ConvertMessageContent(msg.Content),
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for i, tc := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, chat.ToolCall{
				Index: i,
				ID:    tc.ID,
				Type:  tc.Type,
				Function: chat.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, converted)
	}
	return out
}

// ConvertMessageContent converts message content to a string.
// Handles both simple string content and multimodal content arrays, of which
// only the text parts are kept.
func ConvertMessageContent(content interface{}) string {
	if content == nil {
		return ""
	}

	if str, ok := content.(string); ok {
		return str
	}

	if arr, ok := content.([]interface{}); ok {
		return convertMultimodalContent(arr)
	}

	return fmt.Sprintf("%v", content)
}

// convertMultimodalContent extracts text from a multimodal content array.
// Image and other media parts are skipped.
func convertMultimodalContent(parts []interface{}) string {
	var textParts []string

	for _, part := range parts {
		partMap, ok := part.(map[string]interface{})
		if !ok {
			continue
		}

		if partType, _ := partMap["type"].(string); partType != "text" {
			continue
		}
		if text, ok := partMap["text"].(string); ok {
			textParts = append(textParts, text)
		}
	}

	return strings.Join(textParts, " ")
}

// ExtractRequestID extracts the request ID from the X-Request-ID header.
// If the header is not present, it returns an empty string.
func ExtractRequestID(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}

// RequestError represents a request parsing error.
type RequestError struct {
	Message string
	Code    string
	Param   string

	// Status overrides the default 400.
	Status int
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts a RequestError to an OpenAI-compatible error response.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	if e.Status == http.StatusRequestEntityTooLarge {
		return types.NewErrorResponse(e.Message, types.ErrorTypeRequestTooLarge, e.Param, e.Code)
	}
	return types.NewInvalidRequestError(e.Message, e.Param, e.Code)
}

func invalidJSON(param string, err error) *RequestError {
	return &RequestError{
		Message: fmt.Sprintf("invalid JSON: %v", err),
		Code:    types.CodeInvalidJSON,
		Param:   param,
	}
}
