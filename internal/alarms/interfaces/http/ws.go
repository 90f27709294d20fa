package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var dashboardUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes the same messages as the SSE stream over a websocket.
type WebSocketHandler struct {
	broker *Broker
	source SnapshotSource
	logger *zap.SugaredLogger
}

// NewWebSocketHandler constructs a websocket handler.
func NewWebSocketHandler(broker *Broker, source SnapshotSource, logger *zap.SugaredLogger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &WebSocketHandler{broker: broker, source: source, logger: logger}
}

// ServeHTTP handles GET /api/v1/dashboard/ws.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	conn, err := dashboardUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	// Client messages are ignored; reading surfaces closes and pongs.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if h.source != nil {
		if snapshot := h.source.Snapshot(); snapshot.Ready() {
			if payload, err := json.Marshal(snapshot); err == nil {
				if err := h.write(conn, Message{Event: EventSnapshot, Data: payload}); err != nil {
					return
				}
			}
		}
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := h.write(conn, msg); err != nil {
				h.logger.Debugw("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
			return
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
