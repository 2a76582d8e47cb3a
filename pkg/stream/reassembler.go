package stream

import (
	"encoding/json"
	"log/slog"
	"strings"

	"mercator-hq/relay/pkg/chat"
)

const (
	frameDelimiter = "\n\n"
	dataPrefix     = "data:"
	terminator     = "[DONE]"
)

// MaxToolCalls bounds the tool-call index a frame may carry. Frames with an
// index outside [0, MaxToolCalls) are dropped like undecodable ones.
const MaxToolCalls = 128

// frame is the subset of a chat.completion.chunk the reassembler reads.
type frame struct {
	Choices []struct {
		Delta struct {
			Role      string          `json:"role"`
			Content   string          `json:"content"`
			ToolCalls []toolCallDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Reassembler is the per-turn state machine that rebuilds an assistant
// message from SSE frames. It is not safe for concurrent use.
type Reassembler struct {
	buf strings.Builder
	// scanFrom is where the next delimiter search in buf starts.
	scanFrom int
	// heldCR is a trailing "\r" held back until the next chunk shows
	// whether it starts a "\r\n".
	heldCR bool

	message   chat.Message
	content   strings.Builder
	toolCalls []chat.ToolCall
	completed bool
	reason    string
	dropped   int
	logger    *slog.Logger
}

// NewReassembler creates a Reassembler with an empty assistant message.
func NewReassembler() *Reassembler {
	return &Reassembler{
		message: chat.Message{Role: chat.RoleAssistant},
		logger:  slog.Default().With("component", "stream.reassembler"),
	}
}

// Feed appends chunk to the buffer, processes every complete frame and
// returns the delta events they produced. Once the stream has completed,
// Feed returns nil.
func (r *Reassembler) Feed(chunk []byte) []Event {
	if r.completed || len(chunk) == 0 {
		return nil
	}

	r.buf.WriteString(r.normalize(chunk))
	pending := r.buf.String()

	var events []Event
	consumed := false
	start := r.scanFrom
	for !r.completed {
		idx := strings.Index(pending[start:], frameDelimiter)
		if idx < 0 {
			break
		}
		idx += start
		raw := pending[:idx]
		pending = pending[idx+len(frameDelimiter):]
		start = 0
		consumed = true

		if ev, ok := r.processFrame(raw); ok {
			events = append(events, ev)
		}
	}

	if r.completed {
		return events
	}
	if consumed {
		r.buf.Reset()
		r.buf.WriteString(pending)
	}
	// A delimiter may straddle the end of the buffer.
	r.scanFrom = max(0, len(pending)-len(frameDelimiter)+1)

	return events
}

// normalize rewrites CRLF line endings in chunk to LF. Only the new chunk is
// rewritten; a CR at its end is carried into the next call.
func (r *Reassembler) normalize(chunk []byte) string {
	text := string(chunk)
	if r.heldCR {
		text = "\r" + text
		r.heldCR = false
	}
	if strings.HasSuffix(text, "\r") {
		text = text[:len(text)-1]
		r.heldCR = true
	}
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// processFrame classifies one frame and merges its delta.
func (r *Reassembler) processFrame(raw string) (Event, bool) {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		lines = append(lines, strings.TrimPrefix(strings.TrimPrefix(line, dataPrefix), " "))
	}
	if len(lines) == 0 {
		return Event{}, false
	}

	payload := strings.Join(lines, "\n")
	if strings.TrimSpace(payload) == terminator {
		r.complete(ReasonStop)
		return Event{}, false
	}

	var f frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		r.dropped++
		r.logger.Warn("dropping undecodable stream frame",
			"error", err,
			"payload_bytes", len(payload),
		)
		return Event{}, false
	}

	if len(f.Choices) == 0 {
		return Event{}, false
	}
	choice := f.Choices[0]
	delta := choice.Delta

	for _, tc := range delta.ToolCalls {
		if tc.Index < 0 || tc.Index >= MaxToolCalls {
			r.dropped++
			r.logger.Warn("dropping stream frame with out-of-range tool call index",
				"index", tc.Index,
				"payload_bytes", len(payload),
			)
			return Event{}, false
		}
	}

	if delta.Role != "" {
		r.message.Role = delta.Role
	}
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		r.message.FinishReason = *choice.FinishReason
	}

	rawFrame := json.RawMessage(payload)

	for _, tc := range delta.ToolCalls {
		r.mergeToolCall(tc)
	}

	switch {
	case delta.Content != "":
		r.content.WriteString(delta.Content)
		return Event{Type: EventDelta, Content: delta.Content, Raw: rawFrame}, true
	case len(delta.ToolCalls) > 0:
		return Event{Type: EventDelta, Raw: rawFrame}, true
	}

	return Event{}, false
}

// mergeToolCall folds one fragment into the dense tool-call slice.
// The index has already been checked against MaxToolCalls.
func (r *Reassembler) mergeToolCall(tc toolCallDelta) {
	for len(r.toolCalls) <= tc.Index {
		r.toolCalls = append(r.toolCalls, chat.ToolCall{Index: len(r.toolCalls)})
	}

	slot := &r.toolCalls[tc.Index]
	if tc.ID != "" {
		slot.ID += tc.ID
	}
	if tc.Type != "" {
		slot.Type = tc.Type
	}
	if tc.Function.Name != "" {
		slot.Function.Name = tc.Function.Name
	}
	if tc.Function.Arguments != "" {
		slot.Function.Arguments += tc.Function.Arguments
	}
}

func (r *Reassembler) complete(reason string) {
	if r.completed {
		return
	}
	r.completed = true
	r.reason = reason
	r.buf.Reset()
	r.scanFrom = 0
	r.heldCR = false

	r.message.Content = r.content.String()
	if len(r.toolCalls) > 0 {
		r.message.ToolCalls = r.toolCalls
	}
}

// Finish completes the stream with reason unless it already completed, and
// returns a copy of the final message. Any buffered partial frame is
// discarded.
func (r *Reassembler) Finish(reason string) chat.Message {
	r.complete(reason)
	return r.message.Clone()
}

// Completed reports whether the stream has completed.
func (r *Reassembler) Completed() bool {
	return r.completed
}

// Reason returns the completion reason, or "" while still streaming.
func (r *Reassembler) Reason() string {
	return r.reason
}

// Dropped returns the number of frames discarded because they failed to
// decode.
func (r *Reassembler) Dropped() int {
	return r.dropped
}
