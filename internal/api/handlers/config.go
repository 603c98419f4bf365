package handlers

import (
	"net/http"

	"github.com/breakshot/backend/internal/config"
	"github.com/breakshot/backend/internal/game"
	"github.com/gin-gonic/gin"
)

// GetConfig returns the table geometry and timing values the client renders with
func GetConfig(cfg *config.Config) gin.HandlerFunc {
	table := game.NewStandardTable()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"table":          table,
			"frame_rate":     cfg.FrameRate,
			"broadcast_rate": cfg.BroadcastRate,
			"turn_seconds":   cfg.TurnSeconds,
		})
	}
}
