package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/breakshot/backend/internal/auth"
	"github.com/breakshot/backend/internal/config"
	"github.com/breakshot/backend/internal/game"
	"github.com/breakshot/backend/internal/middleware"
	"github.com/breakshot/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// SeatToken is a signed seat handed to a player at table creation
type SeatToken struct {
	Side      int       `json:"side"`
	PlayerID  string    `json:"player_id,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func seatTTL(cfg *config.Config) time.Duration {
	if cfg.SeatTokenTTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(cfg.SeatTokenTTLMinutes) * time.Minute
}

// issueSeats signs side 1, and side 2 when the opponent is remote.
func issueSeats(cfg *config.Config, tableID string, mode game.Mode, players [2]string) ([]SeatToken, error) {
	sides := []int{1}
	if mode == game.ModeMultiplayer {
		sides = append(sides, 2)
	}
	seats := make([]SeatToken, 0, len(sides))
	for _, side := range sides {
		seat := auth.Seat{TableID: tableID, Side: side, PlayerID: players[side-1]}
		token, exp, err := auth.IssueSeatToken(cfg.JWTSecret, seat, seatTTL(cfg))
		if err != nil {
			return nil, err
		}
		seats = append(seats, SeatToken{Side: side, PlayerID: seat.PlayerID, Token: token, ExpiresAt: exp})
	}
	return seats, nil
}

// CreateTable racks a new table and returns its seat tokens
func CreateTable(tm *game.TableManager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Mode       string `json:"mode"`
			PlayerID   string `json:"player_id"`
			OpponentID string `json:"opponent_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		mode, err := game.ParseMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		session, err := tm.CreateTable(c.Request.Context(), game.CreateOptions{
			Mode:       mode,
			PlayerID:   req.PlayerID,
			OpponentID: req.OpponentID,
		})
		if err != nil {
			log.Printf("[TABLE] CreateTable failed for %q: %v", req.PlayerID, err)
			respondError(c, err)
			return
		}

		info, err := tm.Info(session.ID())
		if err != nil {
			respondError(c, err)
			return
		}
		seats, err := issueSeats(cfg, session.ID(), mode, info.Players)
		if err != nil {
			log.Printf("[TABLE] Failed to sign seats for %s: %v", session.ID(), err)
			tm.Close(c.Request.Context(), session.ID())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue seat tokens"})
			return
		}

		c.Header("X-Table-ID", session.ID())
		c.JSON(http.StatusCreated, gin.H{
			"table": info,
			"seats": seats,
			"state": session.Snapshot(),
		})
	}
}

// GetTable returns the summary and current snapshot of a live table
func GetTable(tm *game.TableManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		info, err := tm.Info(id)
		if err != nil {
			respondError(c, err)
			return
		}
		session, err := tm.Get(id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"table": info, "state": session.Snapshot()})
	}
}

// seatedSession resolves the live session for the caller's seat.
func seatedSession(c *gin.Context, tm *game.TableManager) (*game.Session, auth.Seat, bool) {
	seat, ok := middleware.SeatFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "seat token required"})
		return nil, seat, false
	}
	session, err := tm.Get(seat.TableID)
	if err != nil {
		respondError(c, err)
		return nil, seat, false
	}
	return session, seat, true
}

// TakeShot strikes the cue ball for the seated side
func TakeShot(tm *game.TableManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, seat, ok := seatedSession(c, tm)
		if !ok {
			return
		}
		var req struct {
			Angle float64 `json:"angle"`
			Power float64 `json:"power" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "angle and power required"})
			return
		}
		if !session.ApplyShot(seat.Side, req.Angle, req.Power) {
			c.JSON(http.StatusConflict, gin.H{"error": "Shot not allowed now"})
			return
		}
		snap := session.Snapshot()
		c.JSON(http.StatusAccepted, gin.H{"accepted": true, "shot_number": snap.Match.ShotNumber})
	}
}

// PlaceCueBall places the cue ball in the kitchen after a scratch
func PlaceCueBall(tm *game.TableManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, seat, ok := seatedSession(c, tm)
		if !ok {
			return
		}
		var req struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "x and y required"})
			return
		}
		if !session.PlaceCueBall(seat.Side, req.X, req.Y) {
			c.JSON(http.StatusConflict, gin.H{"error": "Cue ball cannot be placed there now"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": session.Snapshot()})
	}
}

// ResetTable re-racks a training or bot table
func ResetTable(tm *game.TableManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, _, ok := seatedSession(c, tm)
		if !ok {
			return
		}
		if session.Mode() == game.ModeMultiplayer {
			c.JSON(http.StatusForbidden, gin.H{"error": "Reset is not available in multiplayer"})
			return
		}
		if err := session.Reset(); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": session.Snapshot()})
	}
}

// QuitTable forfeits the seated side and closes the table
func QuitTable(tm *game.TableManager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		seat, ok := middleware.SeatFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "seat token required"})
			return
		}
		if err := tm.Quit(c.Request.Context(), seat.TableID, seat.Side, seat.PlayerID); err != nil {
			respondError(c, err)
			return
		}
		ws.PublishTableEvent(c.Request.Context(), rdb, ws.TableEvent{
			Type:    "table_closed",
			TableID: seat.TableID,
			Message: "Player quit",
		})
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// SuspendTable snapshots the table so it can be resumed later
func SuspendTable(tm *game.TableManager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		seat, ok := middleware.SeatFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "seat token required"})
			return
		}
		if err := tm.Suspend(c.Request.Context(), seat.TableID); err != nil {
			respondError(c, err)
			return
		}
		ws.PublishTableEvent(c.Request.Context(), rdb, ws.TableEvent{
			Type:    "table_suspended",
			TableID: seat.TableID,
			Message: "Table suspended",
		})
		c.JSON(http.StatusOK, gin.H{"ok": true, "status": game.StatusSuspended})
	}
}

// ResumeTable restores a suspended table
func ResumeTable(tm *game.TableManager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		seat, ok := middleware.SeatFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "seat token required"})
			return
		}
		session, err := tm.Resume(c.Request.Context(), seat.TableID)
		if err != nil {
			respondError(c, err)
			return
		}
		ws.PublishTableEvent(c.Request.Context(), rdb, ws.TableEvent{
			Type:    "table_resumed",
			TableID: seat.TableID,
			Message: "Table resumed",
		})
		c.JSON(http.StatusOK, gin.H{"state": session.Snapshot()})
	}
}

// AimPreview returns the aim-assist geometry for an angle, or for a drag gesture
// on the cue ball. Balls come from a live table or the request body.
func AimPreview(tm *game.TableManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TableID string      `json:"table_id"`
			Balls   []game.Ball `json:"balls"`
			Angle   float64     `json:"angle"`
			Drag    *struct {
				Start game.Vec2 `json:"start"`
				End   game.Vec2 `json:"end"`
			} `json:"drag"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		balls := req.Balls
		if req.TableID != "" {
			session, err := tm.Get(req.TableID)
			if err != nil {
				respondError(c, err)
				return
			}
			balls = session.Snapshot().Balls
		}
		if len(balls) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "table_id or balls required"})
			return
		}

		resp := gin.H{}
		angle := req.Angle
		if req.Drag != nil {
			var cue game.Vec2
			for _, b := range balls {
				if b.ID == game.CueBallID {
					cue = b.Position
				}
			}
			var dc game.DragController
			if !dc.Press(cue, req.Drag.Start) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Drag must start on the cue ball"})
				return
			}
			dc.Move(req.Drag.End)
			shot, ok := dc.Release()
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Drag has no length"})
				return
			}
			angle = shot.Angle
			resp["shot"] = shot
		}

		resp["preview"] = game.AimAssist(balls, angle)
		c.JSON(http.StatusOK, resp)
	}
}
