package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// TableResult is the final outcome of one rack
type TableResult struct {
	ID           int             `db:"id" json:"id"`
	TableID      string          `db:"table_id" json:"table_id"`
	Mode         string          `db:"mode" json:"mode"`
	WinnerSide   int             `db:"winner_side" json:"winner_side"`
	WinType      string          `db:"win_type" json:"win_type"`
	Shots        int             `db:"shots" json:"shots"`
	Player1Group string          `db:"player1_group" json:"player1_group"`
	Player2Group string          `db:"player2_group" json:"player2_group"`
	FinalState   json.RawMessage `db:"final_state" json:"final_state"`
	FinishedAt   time.Time       `db:"finished_at" json:"finished_at"`
}

// TableShot is a single accepted shot
type TableShot struct {
	ID         int       `db:"id" json:"id"`
	TableID    string    `db:"table_id" json:"table_id"`
	ShotNumber int       `db:"shot_number" json:"shot_number"`
	Side       int       `db:"side" json:"side"`
	Angle      float64   `db:"angle" json:"angle"`
	Power      float64   `db:"power" json:"power"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// OperatorAccount is a console user allowed to manage live tables
type OperatorAccount struct {
	Username    string         `db:"username" json:"username"`
	DisplayName string         `db:"display_name" json:"display_name"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Roles       pq.StringArray `db:"roles" json:"roles"`
	AllowedIPs  pq.StringArray `db:"allowed_ips" json:"allowed_ips"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// HasRole reports whether the operator holds role or super_admin.
func (o *OperatorAccount) HasRole(role string) bool {
	for _, r := range o.Roles {
		if r == role || r == "super_admin" {
			return true
		}
	}
	return false
}

// OperatorAudit records an operator action
type OperatorAudit struct {
	ID        int             `db:"id" json:"id"`
	Operator  string          `db:"operator" json:"operator"`
	IP        string          `db:"ip" json:"ip"`
	Route     string          `db:"route" json:"route"`
	Action    string          `db:"action" json:"action"`
	Details   json.RawMessage `db:"details" json:"details"`
	Success   bool            `db:"success" json:"success"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// RuntimeSetting is a table setting override stored in the database
type RuntimeSetting struct {
	Key         string         `db:"key" json:"key"`
	Value       string         `db:"value" json:"value"`
	ValueType   string         `db:"value_type" json:"value_type"`
	Description sql.NullString `db:"description" json:"description,omitempty"`
	UpdatedBy   sql.NullString `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}
