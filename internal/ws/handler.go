package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/breakshot/backend/internal/config"
	"github.com/breakshot/backend/internal/game"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are checked by middleware.WebSocketCORSCheck
	},
}

// Client represents a connected WebSocket client seated at one table
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	tableID  string
	side     int
	playerID string
	send     chan []byte
}

// Hub maintains the set of active clients grouped by table
type Hub struct {
	tables     *game.TableManager
	config     *config.Config
	rooms      map[string]*room // tableID -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

type room struct {
	clients map[*Client]bool
	stop    context.CancelFunc
}

// NewHub creates a new Hub
func NewHub(tm *game.TableManager, cfg *config.Config) *Hub {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Hub{
		tables:     tm,
		config:     cfg,
		rooms:      make(map[string]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Message types
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// OutMessage is a server to client message
type OutMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Run processes registrations until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, r := range h.rooms {
				r.stop()
				delete(h.rooms, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			r, exists := h.rooms[client.tableID]
			if !exists {
				r = &room{clients: make(map[*Client]bool)}
				h.rooms[client.tableID] = r
				if session, err := h.tables.Get(client.tableID); err == nil {
					streamCtx, cancel := context.WithCancel(ctx)
					r.stop = cancel
					go h.streamTable(streamCtx, session)
				} else {
					r.stop = func() {}
				}
			}
			r.clients[client] = true
			size := len(r.clients)
			h.mu.Unlock()

			log.Printf("[WS] Side %d connected to table %s (room_size=%d)", client.side, client.tableID, size)
			if session, err := h.tables.Get(client.tableID); err == nil {
				client.sendJSON(OutMessage{Type: "table_state", Data: session.Snapshot()})
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if r, ok := h.rooms[client.tableID]; ok && r.clients[client] {
				delete(r.clients, client)
				close(client.send)
				if len(r.clients) == 0 {
					r.stop()
					delete(h.rooms, client.tableID)
				}
				log.Printf("[WS] Side %d disconnected from table %s", client.side, client.tableID)
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToTable sends a message to every client at a table
func (h *Hub) BroadcastToTable(tableID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if r, exists := h.rooms[tableID]; exists {
		for client := range r.clients {
			select {
			case client.send <- data:
			default:
				log.Printf("[WS] Client send buffer full for side %d at table %s, dropping message", client.side, tableID)
			}
		}
	}
}

// RoomSize returns the number of clients connected to a table.
func (h *Hub) RoomSize(tableID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[tableID]; ok {
		return len(r.clients)
	}
	return 0
}

func (h *Hub) broadcastInterval() time.Duration {
	rate := h.config.BroadcastRate
	if rate <= 0 {
		rate = 30
	}
	return time.Second / time.Duration(rate)
}

// streamTable samples the session at the broadcast rate and relays its notices.
// The simulation keeps its own frame rate; clients only see sampled snapshots.
func (h *Hub) streamTable(ctx context.Context, session *game.Session) {
	notices, unsubscribe := session.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(h.broadcastInterval())
	defer ticker.Stop()

	var last game.Snapshot
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			h.BroadcastToTable(session.ID(), OutMessage{Type: "table_closed", Data: map[string]string{"table_id": session.ID()}})
			return
		case n, ok := <-notices:
			if !ok {
				notices = nil
				continue
			}
			h.BroadcastToTable(session.ID(), OutMessage{Type: "notice", Data: n})
		case <-ticker.C:
			snap := session.Snapshot()
			if !stateChanged(last, snap) {
				continue
			}
			last = snap
			h.BroadcastToTable(session.ID(), OutMessage{Type: "table_state", Data: snap})
		}
	}
}

func stateChanged(prev, next game.Snapshot) bool {
	if prev.Balls == nil {
		return true
	}
	pm, nm := prev.Match, next.Match
	return prev.Frame != next.Frame ||
		pm.Phase != nm.Phase ||
		pm.CurrentPlayer != nm.CurrentPlayer ||
		pm.TurnRemaining != nm.TurnRemaining ||
		pm.Message != nm.Message ||
		pm.ShotNumber != nm.ShotNumber
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] write error for side %d at table %s: %v", c.side, c.tableID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] ping error for side %d at table %s: %v", c.side, c.tableID, err)
				return
			}
		}
	}
}

// sendJSON queues a message for this client only
func (c *Client) sendJSON(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[WS] dropped message for side %d at table %s (buffer full)", c.side, c.tableID)
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	c.sendJSON(OutMessage{Type: "error", Data: map[string]string{"message": message}})
}
