// Package live pushes attendance updates to connected dashboards over websockets.
package live

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/metrics"
)

// EventRecordUpdated is sent whenever a check-in or check-out is recorded.
const EventRecordUpdated = "record.updated"

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Message is the frame written to clients.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type client struct {
	user attendance.User
	send chan Message
}

// Hub tracks connected clients. It satisfies attendance.Publisher.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*client]struct{}
}

// NewHub creates a hub. allowOrigin decides which browser origins may connect;
// nil allows all.
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		clients:  make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends entry to every client allowed to see its student. Slow clients
// whose buffer is full miss the update.
func (h *Hub) Publish(entry attendance.Entry) {
	msg := Message{Event: EventRecordUpdated, Data: entry}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !attendance.CanSee(c.user, entry.Student) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			log.Printf("live: dropping update for slow client %s", c.user.ID)
		}
	}
}

// Serve upgrades the request and keeps the connection until it closes. The
// caller has already authenticated user.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, user attendance.User) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("ws upgrade failed:", err)
		return
	}
	c := &client{user: user, send: make(chan Message, sendBuffer)}
	h.add(c)
	log.Printf("client connected: %s (%s)", user.ID, user.Role)

	go h.writeLoop(conn, c)
	h.readLoop(conn, c)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.LiveClients(1)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.LiveClients(-1)
	}
	h.mu.Unlock()
}

// readLoop only drains control frames; clients never send commands.
func (h *Hub) readLoop(conn *websocket.Conn, c *client) {
	defer func() {
		h.remove(c)
		conn.Close()
		log.Printf("client disconnected: %s", c.user.ID)
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Println("ws read error:", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
