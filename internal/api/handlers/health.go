package handlers

import (
	"net/http"
	"time"

	"github.com/breakshot/backend/internal/game"
	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status
func HealthCheck(tm *game.TableManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "breakshot-api",
			"version": version,
			"uptime":  time.Since(startTime).String(),
			"tables":  tm.Count(),
		})
	}
}
