package admin

import (
	"fmt"
	"log"
	"strconv"

	"github.com/breakshot/backend/internal/config"
	"github.com/breakshot/backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// GetAllSettings returns all runtime setting overrides
func GetAllSettings(db *sqlx.DB) ([]models.RuntimeSetting, error) {
	var settings []models.RuntimeSetting
	err := db.Select(&settings, `
		SELECT key, value, value_type, description, updated_by, updated_at
		FROM runtime_settings
		ORDER BY key
	`)
	return settings, err
}

// GetSetting returns a single runtime setting
func GetSetting(db *sqlx.DB, key string) (*models.RuntimeSetting, error) {
	var s models.RuntimeSetting
	err := db.Get(&s, `SELECT key, value, value_type, description, updated_by, updated_at FROM runtime_settings WHERE key=$1`, key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ValidateSettingValue checks value against the declared type
func ValidateSettingValue(valueType, value string) error {
	switch valueType {
	case "int":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		if v <= 0 {
			return fmt.Errorf("value must be positive: %s", value)
		}
	case "float":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("invalid float value: %s", value)
		}
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid boolean value: %s (must be 'true' or 'false')", value)
		}
	}
	return nil
}

// UpdateSetting updates a single runtime setting
func UpdateSetting(db *sqlx.DB, key, value, operator string) error {
	existing, err := GetSetting(db, key)
	if err != nil {
		return fmt.Errorf("setting not found: %s", key)
	}
	if err := ValidateSettingValue(existing.ValueType, value); err != nil {
		return err
	}

	_, err = db.Exec(`
		UPDATE runtime_settings SET value=$1, updated_by=$2, updated_at=NOW() WHERE key=$3
	`, value, operator, key)
	return err
}

// ApplySettings copies setting overrides onto cfg. Unknown keys and bad values
// are skipped.
func ApplySettings(settings []models.RuntimeSetting, cfg *config.Config) int {
	applied := 0
	for _, s := range settings {
		v, err := strconv.Atoi(s.Value)
		if err != nil || v <= 0 {
			continue
		}
		switch s.Key {
		case "turn_seconds":
			cfg.TurnSeconds = v
		case "quit_penalty_seconds":
			cfg.QuitPenaltySeconds = v
		case "idle_table_seconds":
			cfg.IdleTableSeconds = v
		case "broadcast_rate":
			cfg.BroadcastRate = v
		default:
			continue
		}
		applied++
	}
	return applied
}

// LoadSettings loads runtime settings from the database and applies them to cfg
func LoadSettings(db *sqlx.DB, cfg *config.Config) error {
	settings, err := GetAllSettings(db)
	if err != nil {
		return err
	}
	n := ApplySettings(settings, cfg)
	log.Printf("[CONFIG] Applied %d runtime setting overrides from database", n)
	return nil
}
