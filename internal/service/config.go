package service

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Runtime settings kept in app_config.
const (
	ConfigUSDRUBRate      = "usd_rub_rate"
	ConfigPrimaryProvider = "primary_provider"

	DefaultUSDRUBRate = 92.0
)

var knownConfigKeys = map[string]func(string) error{
	ConfigUSDRUBRate: func(v string) error {
		rate, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil || rate <= 0 {
			return fmt.Errorf("%s must be a positive number", ConfigUSDRUBRate)
		}
		return nil
	},
	ConfigPrimaryProvider: func(v string) error {
		switch strings.ToLower(v) {
		case "fatsecret", "usda":
			return nil
		}
		return fmt.Errorf("%s must be fatsecret or usda", ConfigPrimaryProvider)
	},
}

func SetConfig(db *sql.DB, key, value string) error {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return fmt.Errorf("config key is required")
	}
	value = strings.TrimSpace(value)
	if validate, ok := knownConfigKeys[key]; ok {
		if err := validate(value); err != nil {
			return err
		}
	}
	_, err := db.Exec(`
INSERT INTO app_config(key, value, updated_at)
VALUES(?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`, key, value)
	if err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}
	return nil
}

func GetConfig(db *sql.DB, key string) (string, bool, error) {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return "", false, fmt.Errorf("config key is required")
	}
	var value string
	err := db.QueryRow(`SELECT value FROM app_config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config %q: %w", key, err)
	}
	return value, true, nil
}

func ListConfig(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query(`SELECT key, value FROM app_config ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config: %w", err)
	}
	return out, nil
}

// USDRUBRate reads the conversion rate used in cost reports.
func USDRUBRate(db *sql.DB) (float64, error) {
	raw, ok, err := GetConfig(db, ConfigUSDRUBRate)
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultUSDRUBRate, nil
	}
	rate, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil || rate <= 0 {
		return DefaultUSDRUBRate, nil
	}
	return rate, nil
}

// PrimaryProvider names the nutrition database results are cached from.
func PrimaryProvider(db *sql.DB) (string, error) {
	raw, ok, err := GetConfig(db, ConfigPrimaryProvider)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return "fatsecret", nil
	}
	return strings.ToLower(strings.TrimSpace(raw)), nil
}
