package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/breakshot/backend/internal/auth"
	"github.com/breakshot/backend/internal/config"
	"github.com/gin-gonic/gin"
)

func seatRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/tables/:id/whoami", RequireSeat(cfg), func(c *gin.Context) {
		seat, ok := SeatFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"side": seat.Side})
	})
	return r
}

func TestRequireSeat(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	r := seatRouter(cfg)

	token, _, err := auth.IssueSeatToken("secret", auth.Seat{TableID: "tbl_a", Side: 2}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing token", "/tables/tbl_a/whoami", "", http.StatusUnauthorized},
		{"garbage token", "/tables/tbl_a/whoami", "Bearer nope", http.StatusUnauthorized},
		{"other table", "/tables/tbl_b/whoami", "Bearer " + token, http.StatusForbidden},
		{"header token", "/tables/tbl_a/whoami", "Bearer " + token, http.StatusOK},
		{"query token", "/tables/tbl_a/whoami?token=" + token, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestRequireOperatorWithoutCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", RequireOperator(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no headers: status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Operator", "ops")
	req.Header.Set("X-Operator-Token", "t")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("no database: status = %d", w.Code)
	}
}
