// Package events pushes read-only state changes to rendering clients over
// WebSocket. The stream is one-directional: clients subscribe and receive
// timeline snapshots, snap indicators, and session notices; all mutations go
// through the HTTP API.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/models"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Envelope is the wire form of every pushed event
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans state events out to all connected subscribers
type Hub struct {
	mu        sync.Mutex
	clients   map[*client]bool
	broadcast chan []byte
	done      chan struct{}
	logger    *zap.Logger
}

// NewHub creates a hub; call Run in a goroutine to start delivery
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:   make(map[*client]bool),
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Run delivers broadcasts until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow consumer, drop the connection rather than block
					h.dropLocked(c)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop disconnects all subscribers and ends the Run loop
func (h *Hub) Stop() {
	close(h.done)
}

// PublishTimeline pushes a full timeline snapshot
func (h *Hub) PublishTimeline(tl models.Timeline) {
	h.publish("timeline", tl)
}

// PublishSnap pushes a snap indicator update; nil clears the indicator
func (h *Hub) PublishSnap(ind *models.SnapIndicator) {
	h.publish("snap", ind)
}

// PublishSessionExpired notifies clients that persistence is blocked until
// re-authentication
func (h *Hub) PublishSessionExpired() {
	h.publish("sessionExpired", nil)
}

func (h *Hub) publish(eventType string, data any) {
	msg, err := json.Marshal(Envelope{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.Warn("Event broadcast queue full, dropping event", zap.String("type", eventType))
	}
}

// ServeWS upgrades the request and streams events until the client
// disconnects
func (h *Hub) ServeWS(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendSize)}
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("Render client connected", zap.Int("clients", count))

	go c.writePump()

	// the read side only notices disconnects, inbound frames are ignored
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
	h.logger.Info("Render client disconnected")
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
