package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mercator-hq/relay/pkg/chat"
	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/stream"
	"mercator-hq/relay/pkg/telemetry/logging"
)

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// WebSocketHandler serves GET /ws. Each text message is a chat turn in the
// same JSON shape as POST /chat/completions. Turns always stream: every
// event is sent as one JSON message and each turn ends with a done event.
// Turns on one connection run one at a time.
type WebSocketHandler struct {
	relay        TurnRunner
	upgrader     websocket.Upgrader
	maxBodyBytes int64
	pingInterval time.Duration
	logger       *slog.Logger
}

// NewWebSocketHandler creates a WebSocket handler. A nil checkOrigin keeps
// gorilla's same-origin check. pingInterval <= 0 disables keepalive pings.
func NewWebSocketHandler(relay TurnRunner, maxBodyBytes int64, pingInterval time.Duration, checkOrigin func(*http.Request) bool) *WebSocketHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = proxy.DefaultMaxBodyBytes
	}
	return &WebSocketHandler{
		relay: relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		maxBodyBytes: maxBodyBytes,
		pingInterval: pingInterval,
		logger:       slog.Default().With("component", "handlers.websocket"),
	}
}

// ServeHTTP implements http.Handler.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.logger)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered with an HTTP error.
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(h.maxBodyBytes)
	if h.pingInterval > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
		})
		go h.pingLoop(ctx, conn)
	}

	messages := make(chan []byte)
	go h.readLoop(ctx, cancel, conn, log, messages)

	log.Info("websocket connected", "remote_addr", r.RemoteAddr)
	turns := 0
	for msg := range messages {
		h.serveTurn(ctx, cancel, conn, log, msg)
		turns++
	}
	log.Info("websocket disconnected", "turns", turns)
}

// readLoop forwards incoming messages until the connection fails or closes.
// A read failure cancels ctx so an in-flight turn stops.
func (h *WebSocketHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, log *slog.Logger, out chan<- []byte) {
	defer close(out)
	defer cancel()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// serveTurn runs one turn and relays its events. Rejected turns are sent as
// an error event followed by a done event with reason "error", so clients
// can treat every turn the same way.
func (h *WebSocketHandler) serveTurn(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, log *slog.Logger, msg []byte) {
	turn, err := proxy.DecodeTurnRequest(msg)
	if err != nil {
		log.Warn("failed to parse websocket message", "error", err)
		errResp := proxy.HandleError(err)
		h.sendFailure(conn, log, "", errResp.Error.HTTPStatusCode(), errResp)
		return
	}
	turn.Stream = true

	resp := h.relay.HandleTurn(ctx, turn)
	if !resp.Streaming() {
		h.sendFailure(conn, log, turn.SessionID, resp.Status, resp.Body)
		return
	}

	broken := false
	for ev := range resp.Events {
		if broken {
			continue
		}
		if err := h.send(conn, ev); err != nil {
			log.Warn("websocket write failed", "error", err)
			broken = true
			cancel()
		}
	}
}

func (h *WebSocketHandler) sendFailure(conn *websocket.Conn, log *slog.Logger, sessionID string, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":{"message":"internal error","type":"internal_error"}}`)
	}
	done := stream.DoneEvent(sessionID, chat.Message{Role: chat.RoleAssistant}, stream.ReasonError)
	for _, ev := range []stream.Event{stream.ErrorEvent(status, string(raw)), done} {
		if err := h.send(conn, ev); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				log.Warn("websocket write failed", "error", err)
			}
			return
		}
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, ev stream.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}
