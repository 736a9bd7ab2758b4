// ABOUTME: WebSocket fan-out of grid state changes.
// ABOUTME: Clients subscribe per grid and receive JSON events for page moves, toggles and column changes.

package events

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Event types
const (
	TypePage        = "page"
	TypeExpand      = "expand"
	TypeContract    = "contract"
	TypeExpandKey   = "expand_key"
	TypeContractKey = "contract_key"
	TypeColumn      = "column"
)

// Event describes one change to a grid's view state.
type Event struct {
	Grid    string `json:"grid"`
	Type    string `json:"type"`
	RowID   string `json:"row_id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Key     string `json:"key,omitempty"`
	Column  string `json:"column,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
	Page    int    `json:"page,omitempty"`
}

var localHosts = map[string]struct{}{"localhost": {}, "127.0.0.1": {}, "::1": {}}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     localOrigin,
}

// localOrigin accepts requests without an Origin header and origins whose host is loopback.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	_, ok := localHosts[u.Hostname()]
	return ok
}

type client struct {
	conn      *websocket.Conn
	grid      string
	send      chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeConn sync.Once
}

// Hub tracks subscribers per grid.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{})}
}

// Publish sends the event to every subscriber of its grid. Slow clients drop messages.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[ev.Grid] {
		select {
		case c.send <- data:
		default:
			log.Printf("Subscriber send buffer full on grid %s, dropping event", ev.Grid)
		}
	}
}

// Subscribers returns the number of connected clients for a grid.
func (h *Hub) Subscribers(grid string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[grid])
}

// Serve upgrades the request and streams the grid's events until the client leaves.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, grid string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		conn:   conn,
		grid:   grid,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	h.register(c)

	go c.writePump()
	go h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.grid] == nil {
		h.clients[c.grid] = make(map[*client]struct{})
	}
	h.clients[c.grid][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[c.grid], c)
	if len(h.clients[c.grid]) == 0 {
		delete(h.clients, c.grid)
	}
}

// readPump discards client input and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.cancel()
		c.closeConn.Do(func() {
			c.conn.Close()
		})
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn.Do(func() {
			c.conn.Close()
		})
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Failed to set write deadline: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Failed to set ping write deadline: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Failed to write ping: %v", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
