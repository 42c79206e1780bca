package connector

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hupe1980/gatemesh/core"
	"github.com/hupe1980/gatemesh/logging"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// WebSocketHandler keeps a long-lived connection per transport worker and
// processes one message per frame.
type WebSocketHandler struct {
	gateway  Gateway
	logger   logging.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a WebSocket connector handler.
func NewWebSocketHandler(gw Gateway, logger logging.Logger) *WebSocketHandler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &WebSocketHandler{
		gateway: gw,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the WebSocket route on a connector-scoped router.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type frame struct {
	Direction string        `json:"direction"`
	Message   *core.Message `json:"message"`
}

type reply struct {
	Type    string        `json:"type"`
	Message *core.Message `json:"message,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	connector := chi.URLParam(r, "connector")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("connector.ws.upgrade_failed", "connector", connector, "error", err)
		return
	}
	defer conn.Close()

	h.logger.Info("connector.ws.connected", "connector", connector, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	writes := make(chan reply, 16)
	done := make(chan struct{})
	go h.writeLoop(ctx, conn, writes, done)
	defer func() {
		cancel()
		<-done
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("connector.ws.read_failed", "connector", connector, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		select {
		case writes <- h.handleFrame(ctx, connector, f):
		case <-done:
			return
		}
	}
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, connector string, f frame) reply {
	if f.Message == nil {
		return reply{Type: "error", Error: "message is required"}
	}
	dir := core.Inbound
	if f.Direction != "" {
		var ok bool
		if dir, ok = core.ParseDirection(f.Direction); !ok {
			return reply{Type: "error", Error: "unsupported direction: " + f.Direction}
		}
	}

	prepareMessage(f.Message, connector)
	out, err := process(ctx, h.gateway, f.Message, connector, dir)
	if err != nil {
		h.logger.Error("connector.ws.message_failed", "connector", connector, "message_id", f.Message.MessageID, "error", err)
		return reply{Type: "error", Error: err.Error()}
	}
	return reply{Type: "message", Message: out}
}

// writeLoop owns all writes to conn: replies and keepalive pings.
func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, writes <-chan reply, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case rep := <-writes:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(rep); err != nil {
				h.logger.Warn("connector.ws.write_failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
