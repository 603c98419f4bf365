package handlers

import (
	"log"
	"net/http"

	"github.com/breakshot/backend/internal/admin"
	"github.com/breakshot/backend/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// GetAdminSettings returns all runtime setting overrides
func GetAdminSettings(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := admin.GetAllSettings(db)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch settings: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch settings"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"settings": settings})
	}
}

// UpdateAdminSetting updates a single runtime setting and re-applies overrides
func UpdateAdminSetting(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		operator := operatorName(c)
		key := c.Param("key")

		var req struct {
			Value string `json:"value" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Value is required"})
			return
		}

		details := map[string]interface{}{"key": key, "value": req.Value}
		if err := admin.UpdateSetting(db, key, req.Value, operator); err != nil {
			log.Printf("[ADMIN] Failed to update setting %s: %v", key, err)
			admin.LogAction(db, operator, c.ClientIP(), c.FullPath(), "update_setting", details, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// New tables pick up the change; live tables keep their turn limit
		if err := admin.LoadSettings(db, cfg); err != nil {
			log.Printf("[ADMIN] Warning: failed to apply runtime settings: %v", err)
		}

		admin.LogAction(db, operator, c.ClientIP(), c.FullPath(), "update_setting", details, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
