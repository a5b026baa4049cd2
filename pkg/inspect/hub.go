package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/atomik-dev/atomik/pkg/atomik"
)

// sendBuffer is the per-client queue of pending event frames.
// A client that falls this far behind is disconnected rather than allowed
// to stall the graph's dispatch path.
const sendBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The inspect server is debug tooling bound to localhost; origin
	// checking is left to the deployment.
	CheckOrigin: func(*http.Request) bool { return true },
}

// client is one connected websocket consumer.
type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// hub fans committed change events out to websocket clients.
type hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	logger  *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		clients: make(map[uuid.UUID]*client),
		logger:  logger,
	}
}

// broadcast queues an event frame for every client. Runs on the graph's
// dispatch path, so it never blocks: slow clients are dropped.
func (h *hub) broadcast(e atomik.Event) {
	frame, err := json.Marshal(e)
	if err != nil {
		h.logger.Warn("inspect: marshal event", "err", err)
		return
	}

	h.mu.RLock()
	var stalled []*client
	for _, c := range h.clients {
		select {
		case c.send <- frame:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.logger.Warn("inspect: dropping slow client", "client", c.id)
		h.remove(c)
	}
}

// add registers a client and starts its writer.
func (h *hub) add(conn *websocket.Conn) *client {
	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	go c.writeLoop()
	go c.readLoop(h)
	return c
}

// remove unregisters a client and closes its queue and connection.
func (h *hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	h.mu.Unlock()

	close(c.send)
	c.conn.Close()
}

// closeAll disconnects every client.
func (h *hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}

// count returns the number of connected clients.
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writeLoop drains the send queue to the connection.
func (c *client) writeLoop() {
	for frame := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop discards client frames, watching for disconnect.
func (c *client) readLoop(h *hub) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
