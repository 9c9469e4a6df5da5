package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// OrderEvent is pushed to connected back-office dashboards.
type OrderEvent struct {
	Type    string    `json:"type"`
	OrderID int64     `json:"order_id"`
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub fans order events out to every connected dashboard.
type Hub struct {
	clients map[string]*client
	mutex   sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

func (h *Hub) Register(conn *websocket.Conn) string {
	id := uuid.NewString()
	h.mutex.Lock()
	h.clients[id] = &client{conn: conn}
	h.mutex.Unlock()
	return id
}

func (h *Hub) Unregister(id string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if c, exists := h.clients[id]; exists {
		_ = c.conn.Close()
		delete(h.clients, id)
	}
}

func (h *Hub) Ping(id string) error {
	h.mutex.RLock()
	c, exists := h.clients[id]
	h.mutex.RUnlock()
	if !exists {
		return websocket.ErrCloseSent
	}
	return c.write(websocket.PingMessage, nil)
}

// Broadcast sends the event to every client and drops the ones that fail.
// It returns the number of clients reached.
func (h *Hub) Broadcast(event OrderEvent) int {
	h.mutex.RLock()
	targets := make(map[string]*client, len(h.clients))
	for id, c := range h.clients {
		targets[id] = c
	}
	h.mutex.RUnlock()

	sent := 0
	for id, c := range targets {
		if err := c.writeJSON(event); err != nil {
			h.Unregister(id)
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) OnlineCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients)
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for id, c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, id)
	}
}
