package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/breakshot/backend/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var devOriginPrefixes = []string{"http://localhost:", "http://127.0.0.1:"}

// CORSMiddleware allows the table client's origins for the environment. Credentials
// are allowed so seat tokens can ride along on browser requests.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Accept", "Authorization",
			"X-Operator", "X-Operator-Token", "X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length", "X-Table-ID", "X-Table-Count"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Environment == "development" {
		corsConfig.AllowOriginFunc = func(origin string) bool { return OriginAllowed(cfg, origin) }
		log.Printf("[CORS] development: allowing %v", devOriginPrefixes)
	} else {
		corsConfig.AllowOrigins = productionOrigins(cfg)
		log.Printf("[CORS] %s: allowing %v", cfg.Environment, corsConfig.AllowOrigins)
	}
	return cors.New(corsConfig)
}

// WebSocketCORSCheck rejects websocket upgrades from unknown origins. Plain requests
// pass through; they are covered by CORSMiddleware.
func WebSocketCORSCheck(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		upgrade := strings.EqualFold(c.GetHeader("Upgrade"), "websocket") &&
			strings.Contains(strings.ToLower(c.GetHeader("Connection")), "upgrade")
		if !upgrade {
			c.Next()
			return
		}

		switch origin := c.GetHeader("Origin"); {
		case origin == "":
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "WebSocket origin required"})
		case !OriginAllowed(cfg, origin):
			log.Printf("[CORS] rejected websocket origin %q", origin)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "WebSocket origin not allowed"})
		default:
			c.Next()
		}
	}
}

// OriginAllowed reports whether a browser origin may talk to the table API.
func OriginAllowed(cfg *config.Config, origin string) bool {
	if cfg.Environment == "development" {
		for _, p := range devOriginPrefixes {
			if strings.HasPrefix(origin, p) {
				return true
			}
		}
		return false
	}
	for _, o := range productionOrigins(cfg) {
		if origin == o {
			return true
		}
	}
	return false
}

func productionOrigins(cfg *config.Config) []string {
	origins := []string{"https://breakshot.gg", "https://play.breakshot.gg"}
	if cfg.FrontendURL != "" {
		origins = append(origins, cfg.FrontendURL)
	}
	return origins
}
