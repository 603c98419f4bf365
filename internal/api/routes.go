package api

import (
	"log"

	"github.com/breakshot/backend/internal/api/handlers"
	"github.com/breakshot/backend/internal/config"
	"github.com/breakshot/backend/internal/game"
	"github.com/breakshot/backend/internal/middleware"
	"github.com/breakshot/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config, tm *game.TableManager, hub *ws.Hub) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(tm))
		v1.GET("/config", handlers.GetConfig(cfg))
		v1.POST("/aim", handlers.AimPreview(tm))

		tables := v1.Group("/tables")
		{
			tables.POST("", handlers.CreateTable(tm, cfg))
			tables.GET("/:id", handlers.GetTable(tm))

			seated := tables.Group("/:id", middleware.RequireSeat(cfg))
			{
				seated.POST("/shot", handlers.TakeShot(tm))
				seated.POST("/cue-ball", handlers.PlaceCueBall(tm))
				seated.POST("/reset", handlers.ResetTable(tm))
				seated.POST("/quit", handlers.QuitTable(tm, rdb))
				seated.POST("/suspend", handlers.SuspendTable(tm, rdb))
				seated.POST("/resume", handlers.ResumeTable(tm, rdb))
				seated.GET("/ws", middleware.WebSocketCORSCheck(cfg), handlers.HandleTableWebSocket(hub))
			}
		}

		ops := v1.Group("/admin", middleware.RequireOperator(db))
		{
			ops.GET("/me", handlers.AdminMe())
			ops.GET("/tables", handlers.AdminListTables(tm))
			ops.POST("/tables/:id/close", handlers.AdminCloseTable(tm, db, rdb))
			ops.POST("/tables/:id/suspend", handlers.AdminSuspendTable(tm, db, rdb))
			ops.GET("/results", handlers.AdminResults(tm))
			ops.GET("/audit", handlers.GetAdminAuditLogs(db))
			ops.GET("/settings", handlers.GetAdminSettings(db))
			ops.PUT("/settings/:key", handlers.UpdateAdminSetting(db, cfg))
		}
	}
}
