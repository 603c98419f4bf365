package middleware

import (
	"net/http"
	"strings"

	"github.com/breakshot/backend/internal/admin"
	"github.com/breakshot/backend/internal/auth"
	"github.com/breakshot/backend/internal/config"
	"github.com/breakshot/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

const (
	seatKey     = "seat"
	operatorKey = "operator"
)

// RequireSeat parses the seat token from the Authorization header (or the token
// query parameter for websocket clients) and checks it matches the :id route.
func RequireSeat(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "seat token required"})
			return
		}

		seat, err := auth.ParseSeatToken(cfg.JWTSecret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if id := c.Param("id"); id != "" && id != seat.TableID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token is for another table"})
			return
		}

		c.Set(seatKey, seat)
		c.Next()
	}
}

// SeatFrom returns the seat set by RequireSeat.
func SeatFrom(c *gin.Context) (auth.Seat, bool) {
	v, ok := c.Get(seatKey)
	if !ok {
		return auth.Seat{}, false
	}
	seat, ok := v.(auth.Seat)
	return seat, ok
}

// RequireOperator checks the X-Operator / X-Operator-Token headers against the
// operator accounts and the account's IP allow list.
func RequireOperator(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetHeader("X-Operator")
		token := c.GetHeader("X-Operator-Token")
		if username == "" || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator credentials required"})
			return
		}
		if db == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "operator accounts unavailable"})
			return
		}

		op, err := admin.ValidateOperator(db, username, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if !admin.IPAllowed(op, c.ClientIP()) {
			admin.LogAction(db, username, c.ClientIP(), c.FullPath(), "login_denied_ip", nil, false)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "address not allowed"})
			return
		}

		c.Set(operatorKey, op)
		c.Next()
	}
}

// OperatorFrom returns the operator set by RequireOperator.
func OperatorFrom(c *gin.Context) (*models.OperatorAccount, bool) {
	v, ok := c.Get(operatorKey)
	if !ok {
		return nil, false
	}
	op, ok := v.(*models.OperatorAccount)
	return op, ok
}
