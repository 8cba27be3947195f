package service

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
)

// AddWeight appends a body weight entry and moves the profile's current
// weight along with it. Daily targets are left as they were computed.
func AddWeight(db *sql.DB, userID int64, weightKG float64, note string, at time.Time) (model.WeightLog, error) {
	if !model.ValidWeightKG(weightKG) {
		return model.WeightLog{}, fmt.Errorf("weight must be between %d and %d kg", model.MinWeightKG, model.MaxWeightKG)
	}
	if at.IsZero() {
		at = time.Now()
	}
	res, err := db.Exec(`
INSERT INTO weight_logs(user_id, weight_kg, note, created_at)
VALUES(?, ?, NULLIF(?, ''), ?)
`, userID, weightKG, strings.TrimSpace(note), formatTimestamp(at))
	if err != nil {
		return model.WeightLog{}, fmt.Errorf("add weight: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.WeightLog{}, fmt.Errorf("resolve weight log id: %w", err)
	}
	if _, err := db.Exec(`UPDATE profiles SET current_weight_kg = ? WHERE user_id = ?`, weightKG, userID); err != nil {
		return model.WeightLog{}, fmt.Errorf("update profile weight: %w", err)
	}
	return model.WeightLog{ID: id, UserID: userID, WeightKG: weightKG, Note: strings.TrimSpace(note), CreatedAt: at.UTC()}, nil
}

// ListWeights returns the newest entries first.
func ListWeights(db *sql.DB, userID int64, limit int) ([]model.WeightLog, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
SELECT id, user_id, weight_kg, IFNULL(note, ''), created_at
FROM weight_logs
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	defer rows.Close()

	out := make([]model.WeightLog, 0)
	for rows.Next() {
		var w model.WeightLog
		var createdRaw string
		if err := rows.Scan(&w.ID, &w.UserID, &w.WeightKG, &w.Note, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		created, err := parseTimestamp(createdRaw)
		if err != nil {
			return nil, err
		}
		w.CreatedAt = created
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weights: %w", err)
	}
	return out, nil
}
