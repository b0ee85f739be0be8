package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"simplepage/internal/pagemanager"
)

// envelope is the wire shape of every WebSocket push.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans page manager events out to every connected WebSocket client.
// Broadcast is best-effort: a write failure drops that client rather than
// blocking the rest, and broadcasts iterate a snapshot of the client set
// so they never block the action path.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
	log     *slog.Logger
}

// client wraps one subscriber connection with a write lock. Actions on
// different pages broadcast from different goroutines, and
// gorilla/websocket forbids concurrent writes to one connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func NewHub() *Hub {
	return &Hub{clients: map[*websocket.Conn]*client{}, log: slog.Default()}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.hub.add(conn)

	// Drain and discard client frames; this endpoint is push-only, but we
	// must read to notice the client disconnecting.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &client{conn: conn}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		_ = conn.Close()
	}
}

// Publish fans evt out to every connected client, matching the manager's
// Event.Type/Data shape to the wire envelope one-for-one. Writes are
// serialized per client so concurrent broadcasts from different pages
// never hit one connection at the same time.
func (h *Hub) Publish(evt pagemanager.Event) {
	msg, err := json.Marshal(envelope{Type: evt.Type, Data: evt.Data})
	if err != nil {
		h.log.Warn("marshal broadcast envelope failed", "error", err)
		return
	}

	h.mu.RLock()
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		if err := c.send(msg); err != nil {
			h.remove(c.conn)
		}
	}
}
