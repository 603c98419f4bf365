package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/breakshot/backend/internal/admin"
	"github.com/breakshot/backend/internal/game"
	"github.com/breakshot/backend/internal/middleware"
	"github.com/breakshot/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// operatorName returns the username of the authenticated operator
func operatorName(c *gin.Context) string {
	if op, ok := middleware.OperatorFrom(c); ok {
		return op.Username
	}
	return ""
}

// AdminMe returns the authenticated operator
func AdminMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		op, ok := middleware.OperatorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"operator": op})
	}
}

// AdminListTables returns every live table on this instance
func AdminListTables(tm *game.TableManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tables := tm.List()
		c.Header("X-Table-Count", strconv.Itoa(len(tables)))
		c.JSON(http.StatusOK, gin.H{"tables": tables, "total": len(tables)})
	}
}

// AdminCloseTable stops a live table without a result
func AdminCloseTable(tm *game.TableManager, db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		operator := operatorName(c)

		if err := tm.Close(c.Request.Context(), id); err != nil {
			log.Printf("[ADMIN] Close table %s by %s failed: %v", id, operator, err)
			admin.LogAction(db, operator, c.ClientIP(), c.FullPath(), "close_table", map[string]interface{}{"table_id": id}, false)
			respondError(c, err)
			return
		}

		ws.PublishTableEvent(c.Request.Context(), rdb, ws.TableEvent{
			Type:    "table_closed",
			TableID: id,
			Message: "Table closed by operator",
		})
		admin.LogAction(db, operator, c.ClientIP(), c.FullPath(), "close_table", map[string]interface{}{"table_id": id}, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// AdminSuspendTable snapshots a live table on behalf of its players
func AdminSuspendTable(tm *game.TableManager, db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		operator := operatorName(c)

		if err := tm.Suspend(c.Request.Context(), id); err != nil {
			log.Printf("[ADMIN] Suspend table %s by %s failed: %v", id, operator, err)
			admin.LogAction(db, operator, c.ClientIP(), c.FullPath(), "suspend_table", map[string]interface{}{"table_id": id}, false)
			respondError(c, err)
			return
		}

		ws.PublishTableEvent(c.Request.Context(), rdb, ws.TableEvent{
			Type:    "table_suspended",
			TableID: id,
			Message: "Table suspended by operator",
		})
		admin.LogAction(db, operator, c.ClientIP(), c.FullPath(), "suspend_table", map[string]interface{}{"table_id": id}, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// AdminResults returns the most recent finished racks
func AdminResults(tm *game.TableManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := pageParams(c)
		results, err := tm.RecentResults(limit)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch results: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch results"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "limit": limit})
	}
}
