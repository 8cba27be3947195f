package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/llm"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
)

// UsageLedger appends one ai_usage_logs row per model call. It satisfies
// llm.UsageRecorder.
type UsageLedger struct {
	DB  *sql.DB
	Now func() time.Time
}

func (l UsageLedger) RecordUsage(ctx context.Context, u llm.Usage) error {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	entry := model.UsageLogEntry{
		UserID:       u.UserID,
		RequestID:    u.RequestID,
		RequestType:  u.RequestType,
		Model:        u.Model,
		CostUSD:      u.CostUSD,
		TokensInput:  u.TokensInput,
		TokensOutput: u.TokensOutput,
		FoodName:     u.FoodName,
		CreatedAt:    now(),
	}
	if u.Err != nil {
		entry.Error = u.Err.Error()
	}
	_, err := AddUsage(ctx, l.DB, entry)
	return err
}

func AddUsage(ctx context.Context, db *sql.DB, e model.UsageLogEntry) (int64, error) {
	if strings.TrimSpace(e.RequestType) == "" {
		return 0, fmt.Errorf("request type is required")
	}
	if e.CostUSD < 0 {
		e.CostUSD = 0
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx, `
INSERT INTO ai_usage_logs(user_id, request_id, request_type, model, cost_usd, tokens_input, tokens_output, food_name, error, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)
`, e.UserID, e.RequestID, e.RequestType, e.Model, e.CostUSD, e.TokensInput, e.TokensOutput, e.FoodName, e.Error, formatTimestamp(e.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert usage log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve usage log id: %w", err)
	}
	return id, nil
}

type TypeCost struct {
	RequestType string  `json:"request_type"`
	CostUSD     float64 `json:"cost_usd"`
	Requests    int     `json:"requests"`
}

type UserCost struct {
	UserID   int64   `json:"user_id"`
	Name     string  `json:"name"`
	CostUSD  float64 `json:"cost_usd"`
	CostRUB  float64 `json:"cost_rub"`
	Requests int     `json:"requests"`
}

type CostReport struct {
	Days     int        `json:"days"`
	CostUSD  float64    `json:"cost_usd"`
	CostRUB  float64    `json:"cost_rub"`
	Rate     float64    `json:"usd_rub_rate"`
	Requests int        `json:"requests"`
	Failed   int        `json:"failed"`
	ByType   []TypeCost `json:"by_type"`
	ByUser   []UserCost `json:"by_user,omitempty"`
}

// Costs totals the ledger over the last days up to now. A nil userID covers
// every user and fills the per-user breakdown.
func Costs(db *sql.DB, userID *int64, days int, now time.Time) (CostReport, error) {
	if days <= 0 {
		days = 30
	}
	rate, err := USDRUBRate(db)
	if err != nil {
		return CostReport{}, err
	}
	since := formatTimestamp(now.AddDate(0, 0, -days))
	report := CostReport{Days: days, Rate: rate}

	filter := `created_at >= ?`
	args := []any{since}
	if userID != nil {
		filter += ` AND user_id = ?`
		args = append(args, *userID)
	}

	if err := db.QueryRow(`
SELECT IFNULL(SUM(cost_usd), 0), COUNT(*), IFNULL(SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END), 0)
FROM ai_usage_logs WHERE `+filter, args...).Scan(&report.CostUSD, &report.Requests, &report.Failed); err != nil {
		return CostReport{}, fmt.Errorf("sum usage: %w", err)
	}
	report.CostRUB = roundTo(report.CostUSD*rate, 2)

	rows, err := db.Query(`
SELECT request_type, IFNULL(SUM(cost_usd), 0), COUNT(*)
FROM ai_usage_logs WHERE `+filter+`
GROUP BY request_type
ORDER BY SUM(cost_usd) DESC, request_type ASC
`, args...)
	if err != nil {
		return CostReport{}, fmt.Errorf("usage by type: %w", err)
	}
	defer rows.Close()
	report.ByType = make([]TypeCost, 0)
	for rows.Next() {
		var tc TypeCost
		if err := rows.Scan(&tc.RequestType, &tc.CostUSD, &tc.Requests); err != nil {
			return CostReport{}, fmt.Errorf("scan usage by type: %w", err)
		}
		report.ByType = append(report.ByType, tc)
	}
	if err := rows.Err(); err != nil {
		return CostReport{}, fmt.Errorf("iterate usage by type: %w", err)
	}

	if userID == nil {
		byUser, err := costsByUser(db, since, rate)
		if err != nil {
			return CostReport{}, err
		}
		report.ByUser = byUser
	}
	return report, nil
}

func costsByUser(db *sql.DB, since string, rate float64) ([]UserCost, error) {
	rows, err := db.Query(`
SELECT u.id, IFNULL(u.username, ''), IFNULL(u.first_name, ''), SUM(a.cost_usd), COUNT(a.id)
FROM ai_usage_logs a
JOIN users u ON u.id = a.user_id
WHERE a.created_at >= ?
GROUP BY u.id
ORDER BY SUM(a.cost_usd) DESC, u.id ASC
`, since)
	if err != nil {
		return nil, fmt.Errorf("usage by user: %w", err)
	}
	defer rows.Close()
	out := make([]UserCost, 0)
	for rows.Next() {
		var uc UserCost
		var username, first string
		if err := rows.Scan(&uc.UserID, &username, &first, &uc.CostUSD, &uc.Requests); err != nil {
			return nil, fmt.Errorf("scan usage by user: %w", err)
		}
		uc.Name = model.User{Username: username, FirstName: first}.DisplayName()
		if uc.Name == "" {
			uc.Name = fmt.Sprintf("User_%d", uc.UserID)
		}
		uc.CostRUB = roundTo(uc.CostUSD*rate, 2)
		out = append(out, uc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage by user: %w", err)
	}
	return out, nil
}
