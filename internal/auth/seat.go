package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidSeatToken = errors.New("invalid seat token")

// Seat identifies who may act on one side of a table.
type Seat struct {
	TableID  string `json:"table_id"`
	Side     int    `json:"side"`
	PlayerID string `json:"player_id,omitempty"`
}

// IssueSeatToken signs an HS256 token binding the holder to one side of a table.
func IssueSeatToken(secret string, seat Seat, ttl time.Duration) (string, time.Time, error) {
	if seat.Side != 1 && seat.Side != 2 {
		return "", time.Time{}, fmt.Errorf("issue seat token: side %d", seat.Side)
	}
	exp := time.Now().Add(ttl)
	claims := jwt.MapClaims{
		"table_id":  seat.TableID,
		"side":      seat.Side,
		"player_id": seat.PlayerID,
		"exp":       jwt.NewNumericDate(exp).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign seat token: %w", err)
	}
	return signed, exp, nil
}

// ParseSeatToken validates a seat token and returns its seat.
func ParseSeatToken(secret, token string) (Seat, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return Seat{}, ErrInvalidSeatToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Seat{}, ErrInvalidSeatToken
	}
	tableID, _ := claims["table_id"].(string)
	sidef, ok := claims["side"].(float64)
	if tableID == "" || !ok || (sidef != 1 && sidef != 2) {
		return Seat{}, ErrInvalidSeatToken
	}
	playerID, _ := claims["player_id"].(string)
	return Seat{TableID: tableID, Side: int(sidef), PlayerID: playerID}, nil
}
