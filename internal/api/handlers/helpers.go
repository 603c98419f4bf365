package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/breakshot/backend/internal/game"
	"github.com/gin-gonic/gin"
)

// statusFor maps table errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrTableNotFound), errors.Is(err, game.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrPenalised):
		return http.StatusForbidden
	case errors.Is(err, game.ErrTooManyTables), errors.Is(err, game.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, game.ErrInvalidSide):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body
func respondError(c *gin.Context, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "Internal error"
	}
	c.JSON(code, gin.H{"error": msg})
}

// pageParams reads limit/offset query parameters, capping limit at 200
func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = 25
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
