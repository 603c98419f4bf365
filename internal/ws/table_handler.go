package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/breakshot/backend/internal/game"
	"github.com/breakshot/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Table message data types
type TakeShotData struct {
	Angle float64 `json:"angle"`
	Power float64 `json:"power"`
}

type PlaceCueBallData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type AimData struct {
	Angle float64 `json:"angle"`
}

// HandleWebSocket upgrades a seated player's connection and joins the table room.
// It must run behind middleware.RequireSeat.
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		seat, ok := middleware.SeatFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "seat token required"})
			return
		}
		if _, err := hub.tables.Get(seat.TableID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		client := &Client{
			hub:      hub,
			conn:     conn,
			tableID:  seat.TableID,
			side:     seat.Side,
			playerID: seat.PlayerID,
			send:     make(chan []byte, 256),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump reads table commands from the connection.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(8192)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] unexpected close for side %d at table %s: %v", c.side, c.tableID, err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("Invalid message")
			continue
		}

		c.handleMessage(msg)
	}
}

// handleMessage dispatches one client command to the table.
func (c *Client) handleMessage(msg WSMessage) {
	session, err := c.hub.tables.Get(c.tableID)
	if err != nil {
		c.sendError("Table not found")
		return
	}

	switch msg.Type {
	case "take_shot":
		var data TakeShotData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid shot data")
			return
		}
		if !session.ApplyShot(c.side, data.Angle, data.Power) {
			c.sendError("Shot not allowed now")
		}

	case "place_cue_ball":
		var data PlaceCueBallData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid placement data")
			return
		}
		if !session.PlaceCueBall(c.side, data.X, data.Y) {
			c.sendError("Cue ball cannot be placed there now")
		}

	case "aim":
		var data AimData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid aim data")
			return
		}
		c.sendJSON(OutMessage{Type: "aim_preview", Data: session.Aim(data.Angle)})

	case "reset":
		if session.Mode() == game.ModeMultiplayer {
			c.sendError("Reset is not available in multiplayer")
			return
		}
		if err := session.Reset(); err != nil {
			c.sendError(err.Error())
		}

	case "get_state":
		c.sendJSON(OutMessage{Type: "table_state", Data: session.Snapshot()})

	case "quit":
		if err := c.hub.tables.Quit(context.Background(), c.tableID, c.side, c.playerID); err != nil {
			c.sendError(err.Error())
		}

	default:
		c.sendError("Unknown message type")
	}
}
