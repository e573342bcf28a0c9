package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/models"
)

const (
	maxHubClients    = 100
	defaultWriteWait = 10 * time.Second
)

// Hub fans dispatched notifications out to connected dashboard clients. It
// is registered as a registry subscriber, so it is just another in-app
// surface: one slow or broken client never affects the others or the
// pipeline. Messages use the service-worker push shape
// {"notification":{"title","body"},"data":...}.
type Hub struct {
	logger    *logrus.Logger
	upgrader  websocket.Upgrader
	writeWait time.Duration

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the dashboard is served from another origin in development
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeWait: defaultWriteWait,
		conns:     make(map[*websocket.Conn]bool),
	}
}

// HandleWS upgrades the request and tracks the client until it disconnects.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	if len(h.conns) >= maxHubClients {
		h.mu.Unlock()
		h.logger.Warnf("Max dashboard clients reached, rejecting connection")
		conn.Close()
		return
	}
	h.conns[conn] = true
	total := len(h.conns)
	h.mu.Unlock()
	h.logger.Infof("Dashboard client connected (total: %d)", total)

	// inbound messages are ignored; the read loop only detects disconnect
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		h.logger.Infof("Dashboard client disconnected (remaining: %d)", len(h.conns))
	}
	h.mu.Unlock()
	conn.Close()
}

// ClientCount reports the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Publish sends a payload to every connected client; registry.Func shaped.
// Each write carries a deadline, so a stalled client is evicted like any
// other write failure instead of holding up the broadcast.
func (h *Hub) Publish(payload models.NotificationPayload) {
	msg := models.PushMessage{
		Notification: models.PushNotification{
			Title: payload.Title,
			Body:  payload.Body,
			Icon:  payload.Icon,
		},
	}
	if payload.SourceEvent != nil {
		ev := payload.SourceEvent.RawEvent
		msg.Data = &ev
	}
	msg.Normalize()

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Errorf("Failed to send to dashboard client: %v", err)
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}
