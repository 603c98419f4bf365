package handlers

import (
	"github.com/breakshot/backend/internal/ws"
	"github.com/gin-gonic/gin"
)

// HandleTableWebSocket streams a table to a seated player
func HandleTableWebSocket(hub *ws.Hub) gin.HandlerFunc {
	return ws.HandleWebSocket(hub)
}
