package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// broadcastEvents are the lifecycle events forwarded to connected clients
var broadcastEvents = []interfaces.EventType{
	interfaces.EventLoginQRReady,
	interfaces.EventLoginQRRefreshed,
	interfaces.EventLoginSucceeded,
	interfaces.EventLoginFailed,
	interfaces.EventSessionRecreated,
	interfaces.EventSessionClosed,
}

// wsMessage is the wire envelope for broadcast events
type wsMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// WebSocketHandler broadcasts login and session lifecycle events to every
// connected client. Callers correlate events by the account_id and
// session_id fields in the payload.
type WebSocketHandler struct {
	logger arbor.ILogger
	events interfaces.EventService

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
}

// NewWebSocketHandler creates the handler and subscribes it to the
// broadcast event types
func NewWebSocketHandler(events interfaces.EventService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:  logger,
		events:  events,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}

	for _, eventType := range broadcastEvents {
		et := eventType
		if err := events.Subscribe(et, func(_ context.Context, event interfaces.Event) error {
			h.broadcast(wsMessage{
				Type:      string(et),
				Payload:   event.Payload,
				Timestamp: time.Now().UTC(),
			})
			return nil
		}); err != nil {
			logger.Warn().Err(err).Str("event_type", string(et)).Msg("Failed to subscribe websocket broadcaster")
		}
	}

	return h
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().
		Str("remote", r.RemoteAddr).
		Int("clients", clientCount).
		Msg("WebSocket client connected")

	// Read loop exists only to detect disconnect; inbound messages are
	// ignored
	go func() {
		defer h.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcast sends a message to every connected client, dropping the ones
// whose writes fail
func (h *WebSocketHandler) broadcast(message wsMessage) {
	h.mu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, lock := range h.clients {
		conns[conn] = lock
	}
	h.mu.RUnlock()

	for conn, lock := range conns {
		lock.Lock()
		err := conn.WriteJSON(message)
		lock.Unlock()
		if err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
			h.dropClient(conn)
		}
	}
}

func (h *WebSocketHandler) dropClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.mu.Unlock()
}

// Close disconnects all clients
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
