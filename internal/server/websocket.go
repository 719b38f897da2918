package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// SymbolEvent reports one processed symbol.
type SymbolEvent struct {
	RequestID    string  `json:"requestId"`
	Op           string  `json:"op"`
	PayloadBytes int     `json:"payloadBytes"`
	Samples      int     `json:"samples"`
	DurationMs   float64 `json:"durationMs"`
}

const (
	writeWait  = 5 * time.Second // per-message write deadline
	sendBuffer = 64              // queued messages before a client is dropped
)

// wsClient is one connection and its outgoing queue.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WSHub manages WebSocket connections. Each client has its own writer
// goroutine, so a stalled client never blocks Broadcast.
type WSHub struct {
	clients map[*websocket.Conn]*wsClient
	mu      sync.Mutex
	metrics *Metrics
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(metrics *Metrics) *WSHub {
	return &WSHub{
		clients: make(map[*websocket.Conn]*wsClient),
		metrics: metrics,
	}
}

// AddClient registers a new WebSocket connection and starts its writer.
func (h *WSHub) AddClient(conn *websocket.Conn) {
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[conn] = c
	h.metrics.wsClients.Set(float64(len(h.clients)))
	log.Printf("WebSocket client connected (%d total)", len(h.clients))
	h.mu.Unlock()

	go h.writePump(c)
}

// RemoveClient removes a WebSocket connection.
func (h *WSHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn)
}

func (h *WSHub) removeLocked(conn *websocket.Conn) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	close(c.send)
	conn.Close()
	h.metrics.wsClients.Set(float64(len(h.clients)))
	log.Printf("WebSocket client disconnected (%d remaining)", len(h.clients))
}

// writePump sends queued messages until the queue is closed or a write
// fails.
func (h *WSHub) writePump(c *wsClient) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WebSocket write error: %v", err)
			h.RemoveClient(c.conn)
			return
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues a message for all connected clients without blocking.
// A client whose queue is full is dropped.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket marshal error: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("WebSocket client too slow, dropping")
			h.removeLocked(conn)
		}
	}
}

// BroadcastSymbol reports a processed symbol to all clients.
func (h *WSHub) BroadcastSymbol(ev SymbolEvent) {
	h.Broadcast(WSMessage{Type: "symbol", Payload: ev})
}

// BroadcastLog sends a log message to all clients.
func (h *WSHub) BroadcastLog(level, message string) {
	h.Broadcast(WSMessage{
		Type: "log",
		Payload: map[string]string{
			"level":   level,
			"message": message,
		},
	})
}
