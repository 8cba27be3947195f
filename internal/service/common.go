package service

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNoProfile     = errors.New("profile not found")
	ErrProfileExists = errors.New("profile already exists")
)

// sqliteTimestamp is the layout CURRENT_TIMESTAMP produces.
const sqliteTimestamp = "2006-01-02 15:04:05"

func validateNonNegativeInt(name string, value int) error {
	if value < 0 {
		return fmt.Errorf("%s must be >= 0", name)
	}
	return nil
}

func validateNonNegativeFloat(name string, value float64) error {
	if value < 0 {
		return fmt.Errorf("%s must be >= 0", name)
	}
	return nil
}

// formatTimestamp stores every instant as UTC RFC3339 so text comparison
// in SQL orders rows correctly.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(sqliteTimestamp, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
