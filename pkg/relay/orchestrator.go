package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/relay/pkg/backend"
	"mercator-hq/relay/pkg/chat"
	"mercator-hq/relay/pkg/session"
	"mercator-hq/relay/pkg/stream"
	"mercator-hq/relay/pkg/telemetry/logging"
	"mercator-hq/relay/pkg/telemetry/metrics"
	"mercator-hq/relay/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultEventBuffer is the capacity of a streaming turn's event channel.
	DefaultEventBuffer = 16

	// DefaultReadSize is how many bytes are read from the backend body at a time.
	DefaultReadSize = 4096

	missingSessionMessage = "session_id is required"
)

// TurnRequest is one client turn as parsed from the HTTP body.
type TurnRequest struct {
	// SessionID names the conversation. Unknown ids start an empty one.
	SessionID string

	// Model is a configured model key; empty selects the default model.
	Model string

	// Messages is the client's message list, ending with the new user message.
	Messages []chat.Message

	// Stream requests an event stream instead of a single JSON reply.
	Stream bool

	// Options are passed through to the backend request body.
	Options map[string]any
}

// Response is the outcome of HandleTurn. Exactly one of Body or Events is set.
type Response struct {
	// Status is the HTTP status to answer with.
	Status int

	// Body is the JSON body of a non-streaming reply or of an error.
	Body any

	// Events carries a streaming turn's events. It is closed after the done event.
	Events <-chan stream.Event

	// Err is the error behind a non-2xx Status.
	Err error
}

// Streaming reports whether the response is an event stream.
func (r *Response) Streaming() bool {
	return r.Events != nil
}

// Options configures an Orchestrator.
type Options struct {
	// Metrics records turn metrics. Nil disables metrics.
	Metrics *metrics.Collector

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Tracer starts the turn span. Nil uses the global tracer provider.
	Tracer *tracing.Tracer

	// EventBuffer defaults to DefaultEventBuffer.
	EventBuffer int

	// ReadSize defaults to DefaultReadSize.
	ReadSize int
}

// Orchestrator executes chat turns against a session store and a set of
// backends.
type Orchestrator struct {
	store       *session.Store
	models      *backend.Registry
	metrics     *metrics.Collector
	tracer      *tracing.Tracer
	logger      *slog.Logger
	eventBuffer int
	readSize    int
}

// New creates an Orchestrator.
func New(store *session.Store, models *backend.Registry, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.ReadSize <= 0 {
		opts.ReadSize = DefaultReadSize
	}

	return &Orchestrator{
		store:       store,
		models:      models,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		logger:      logger.With("component", "relay"),
		eventBuffer: opts.EventBuffer,
		readSize:    opts.ReadSize,
	}
}

// turn carries the state of one turn between its phases.
type turn struct {
	req      *TurnRequest
	client   *backend.Client
	model    string
	mode     string
	messages []chat.Message
	release  func()
	start    time.Time
	logger   *slog.Logger
	span     trace.Span
}

func (o *Orchestrator) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if o.tracer != nil {
		return o.tracer.Start(ctx, name)
	}
	return tracing.Start(ctx, name)
}

// HandleTurn runs one turn. Validation errors are returned before the
// backend is contacted. For streaming turns the returned Events channel must
// be drained by the caller or ctx canceled.
func (o *Orchestrator) HandleTurn(ctx context.Context, req *TurnRequest) *Response {
	t := &turn{
		req:    req,
		mode:   metrics.ModeComplete,
		start:  time.Now(),
		logger: logging.FromContext(ctx, o.logger),
	}
	if req.Stream {
		t.mode = metrics.ModeStream
	}

	ctx, t.span = o.startSpan(ctx, "relay.turn")
	tracing.SetTurnAttributes(t.span, req.SessionID, req.Model, req.Stream)

	if err := o.prepare(ctx, t); err != nil {
		o.metrics.RecordTurn(t.model, t.mode, outcome(err), time.Since(t.start))
		t.logger.Warn("turn rejected", "error", err)
		tracing.SetError(t.span, err)
		t.span.End()
		return o.fail(err)
	}

	if req.Stream {
		// runStream ends the span.
		return o.stream(ctx, t)
	}

	defer t.span.End()
	defer t.release()
	return o.complete(ctx, t)
}

// prepare validates the request, resolves the backend, takes the session
// lock and builds the outgoing message list. On success t.release must be
// called once the turn is over.
func (o *Orchestrator) prepare(ctx context.Context, t *turn) error {
	req := t.req
	if req.SessionID == "" {
		return &chat.ValidationError{Field: "session_id", Message: missingSessionMessage}
	}
	if err := session.ValidateID(req.SessionID); err != nil {
		return &chat.ValidationError{Field: "session_id", Message: err.Error()}
	}
	if err := chat.ValidateIncoming(req.Messages); err != nil {
		return err
	}

	client, err := o.models.Resolve(req.Model)
	if err != nil {
		if errors.Is(err, backend.ErrUnknownModel) {
			return newModelError(req.Model, err)
		}
		return err
	}
	t.client = client
	t.model = client.Key()
	t.span.SetAttributes(tracing.AttrModel.String(t.model))
	t.logger = t.logger.With("session_id", req.SessionID, "model", t.model)

	release, err := o.store.Acquire(ctx, req.SessionID)
	if err != nil {
		return err
	}

	history, err := o.store.Load(req.SessionID)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		release()
		return err
	}

	messages, err := chat.Normalize(history, req.Messages)
	if err != nil {
		release()
		return err
	}

	t.messages = messages
	t.release = release
	t.span.SetAttributes(tracing.AttrMessages.Int(len(messages)))
	return nil
}

// complete runs a non-streaming turn.
func (o *Orchestrator) complete(ctx context.Context, t *turn) *Response {
	t.logger.Info("processing turn",
		"mode", t.mode,
		"messages", len(t.messages),
	)

	callStart := time.Now()
	result, err := t.client.Complete(ctx, t.messages, t.req.Options)
	o.metrics.RecordBackendLatency(t.model, time.Since(callStart))
	if err != nil {
		return o.finishWithError(t, err)
	}

	// A reply without a usable first-choice message is still relayed as is.
	// The session is left unchanged since there is no assistant turn to add.
	reply, err := firstChoiceMessage(result)
	if err != nil {
		t.logger.Warn("backend reply has no assistant message, session not updated", "error", err)
	} else {
		o.persist(context.WithoutCancel(ctx), t, append(t.messages, reply))
	}

	result["session_id"] = t.req.SessionID
	tracing.SetOutcomeAttributes(t.span, reply.FinishReason, 0, len(reply.ToolCalls))
	tracing.SetStatus(t.span, nil)
	o.metrics.RecordTurn(t.model, t.mode, metrics.OutcomeOK, time.Since(t.start))
	t.logger.Info("turn completed",
		"mode", t.mode,
		"finish_reason", reply.FinishReason,
		"latency_ms", time.Since(t.start).Milliseconds(),
	)

	return &Response{Status: http.StatusOK, Body: result}
}

// stream starts a streaming turn. The session event is queued before the
// channel is returned.
func (o *Orchestrator) stream(ctx context.Context, t *turn) *Response {
	events := make(chan stream.Event, o.eventBuffer)
	events <- stream.SessionEvent(t.req.SessionID)

	t.logger.Info("processing turn",
		"mode", t.mode,
		"messages", len(t.messages),
	)

	go o.runStream(ctx, t, events)

	return &Response{Status: http.StatusOK, Events: events}
}

// runStream owns events and the session lock for the lifetime of the turn.
func (o *Orchestrator) runStream(ctx context.Context, t *turn, events chan<- stream.Event) {
	defer close(events)
	defer t.span.End()
	defer t.release()

	forwarding := true
	send := func(ev stream.Event) {
		if !forwarding {
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			forwarding = false
		}
	}

	callStart := time.Now()
	resp, err := t.client.Stream(ctx, t.messages, t.req.Options)
	o.metrics.RecordBackendLatency(t.model, time.Since(callStart))
	if err != nil {
		status, _ := errorResponse(err)
		body := err.Error()
		var backendErr *chat.BackendError
		if errors.As(err, &backendErr) && backendErr.Body != "" {
			body = backendErr.Body
		}
		o.streamFailed(t, send, status, body, err)
		return
	}

	if !resp.OK() {
		o.streamFailed(t, send, resp.StatusCode, resp.ErrorBody, &chat.BackendError{
			Model:      t.model,
			StatusCode: resp.StatusCode,
			Body:       resp.ErrorBody,
			Message:    "non-success status",
		})
		return
	}
	defer resp.Body.Close()

	r := stream.NewReassembler()
	reason := stream.ReasonEOF
	deltas := 0
	buf := make([]byte, o.readSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range r.Feed(buf[:n]) {
				deltas++
				send(ev)
			}
			if r.Completed() {
				break
			}
		}
		if !forwarding || ctx.Err() != nil {
			reason = stream.ReasonCanceled
			break
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				t.logger.Warn("backend stream read failed", "error", readErr)
			}
			break
		}
	}

	msg := r.Finish(reason)
	reason = r.Reason()

	o.metrics.RecordDeltas(t.model, deltas)
	o.metrics.RecordDroppedFrames(t.model, r.Dropped())

	if reason != stream.ReasonCanceled || hasContent(msg) {
		o.persist(context.WithoutCancel(ctx), t, append(t.messages, msg))
	}

	tracing.SetOutcomeAttributes(t.span, reason, deltas, len(msg.ToolCalls))
	tracing.SetStatus(t.span, nil)

	turnOutcome := metrics.OutcomeOK
	if reason == stream.ReasonCanceled {
		turnOutcome = metrics.OutcomeCanceled
	}
	o.metrics.RecordTurn(t.model, t.mode, turnOutcome, time.Since(t.start))
	t.logger.Info("turn completed",
		"mode", t.mode,
		"reason", reason,
		"deltas", deltas,
		"dropped_frames", r.Dropped(),
		"latency_ms", time.Since(t.start).Milliseconds(),
	)

	send(stream.DoneEvent(t.req.SessionID, msg, reason))
}

// streamFailed reports a backend failure on the event stream. The session
// is left unchanged.
func (o *Orchestrator) streamFailed(t *turn, send func(stream.Event), status int, body string, err error) {
	o.metrics.RecordTurn(t.model, t.mode, outcome(err), time.Since(t.start))
	t.logger.Error("backend stream failed",
		"status", status,
		"error", err,
	)
	tracing.SetError(t.span, err)
	t.span.SetAttributes(tracing.AttrFinishReason.String(stream.ReasonError))

	send(stream.ErrorEvent(status, body))
	send(stream.DoneEvent(t.req.SessionID, chat.Message{Role: chat.RoleAssistant}, stream.ReasonError))
}

// finishWithError ends a non-streaming turn after a backend failure.
func (o *Orchestrator) finishWithError(t *turn, err error) *Response {
	o.metrics.RecordTurn(t.model, t.mode, outcome(err), time.Since(t.start))
	t.logger.Error("backend call failed", "error", err)
	tracing.SetError(t.span, err)
	return o.fail(err)
}

// persist stores messages as the session's history. Failures are logged and
// counted only.
func (o *Orchestrator) persist(ctx context.Context, t *turn, messages []chat.Message) {
	err := o.store.Replace(ctx, t.req.SessionID, messages)
	o.metrics.SetSessions(o.store.Count())
	if err != nil {
		o.metrics.RecordPersistFailure()
		tracing.AddEvent(t.span, "persist_failed", tracing.AttrMessages.Int(len(messages)))
		t.logger.Error("failed to persist session",
			"messages", len(messages),
			"error", err,
		)
	}
}

func (o *Orchestrator) fail(err error) *Response {
	status, body := errorResponse(err)
	return &Response{Status: status, Body: body, Err: err}
}

// firstChoiceMessage extracts choices[0].message from a decoded backend reply.
func firstChoiceMessage(result map[string]any) (chat.Message, error) {
	choices, ok := result["choices"].([]any)
	if !ok || len(choices) == 0 {
		return chat.Message{}, fmt.Errorf("response has no choices")
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return chat.Message{}, fmt.Errorf("choice 0 is not an object")
	}
	raw, ok := choice["message"]
	if !ok {
		return chat.Message{}, fmt.Errorf("choice 0 has no message")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return chat.Message{}, err
	}
	var msg chat.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return chat.Message{}, fmt.Errorf("decode choice 0 message: %w", err)
	}

	if msg.Role == "" {
		msg.Role = chat.RoleAssistant
	}
	if len(msg.ToolCalls) == 0 {
		msg.ToolCalls = nil
	}
	if reason, ok := choice["finish_reason"].(string); ok {
		msg.FinishReason = reason
	}
	return msg, nil
}

func hasContent(msg chat.Message) bool {
	return msg.Content != "" || len(msg.ToolCalls) > 0
}
