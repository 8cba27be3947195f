package service

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
)

type FoodLogInput struct {
	UserID    int64
	FoodName  string
	Grams     int
	Calories  int
	ProteinG  float64
	FatG      float64
	CarbsG    float64
	FiberG    float64
	Source    string
	CreatedAt time.Time
}

// FoodLogFromResult copies a resolved portion into an insert input.
func FoodLogFromResult(userID int64, r nutrition.Result, source string) FoodLogInput {
	if source == "" {
		source = r.Source
	}
	return FoodLogInput{
		UserID:   userID,
		FoodName: r.Name,
		Grams:    r.Grams,
		Calories: r.Calories,
		ProteinG: r.ProteinG,
		FatG:     r.FatG,
		CarbsG:   r.CarbsG,
		FiberG:   r.FiberG,
		Source:   source,
	}
}

func validateFoodLog(in *FoodLogInput) error {
	in.FoodName = strings.TrimSpace(in.FoodName)
	if in.FoodName == "" {
		return fmt.Errorf("food name is required")
	}
	if in.UserID <= 0 {
		return fmt.Errorf("user id must be > 0")
	}
	if in.Grams <= 0 {
		in.Grams = nutrition.DefaultGrams
	}
	if err := validateNonNegativeInt("calories", in.Calories); err != nil {
		return err
	}
	for name, v := range map[string]float64{"protein": in.ProteinG, "fat": in.FatG, "carbs": in.CarbsG, "fiber": in.FiberG} {
		if err := validateNonNegativeFloat(name, v); err != nil {
			return err
		}
	}
	if strings.TrimSpace(in.Source) == "" {
		in.Source = "text"
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertFoodLog(x execer, in FoodLogInput) (int64, error) {
	res, err := x.Exec(`
INSERT INTO food_logs(user_id, food_name, grams, calories, protein_g, fat_g, carbs_g, fiber_g, source, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, in.UserID, in.FoodName, in.Grams, in.Calories, in.ProteinG, in.FatG, in.CarbsG, in.FiberG, in.Source, formatTimestamp(in.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert food log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve inserted food log id: %w", err)
	}
	return id, nil
}

func CreateFoodLog(db *sql.DB, in FoodLogInput) (model.FoodLog, error) {
	if err := validateFoodLog(&in); err != nil {
		return model.FoodLog{}, err
	}
	id, err := insertFoodLog(db, in)
	if err != nil {
		return model.FoodLog{}, err
	}
	return GetFoodLog(db, id)
}

const foodLogColumns = `id, user_id, food_name, grams, calories, protein_g, fat_g, carbs_g, fiber_g, source, created_at`

func GetFoodLog(db *sql.DB, id int64) (model.FoodLog, error) {
	row := db.QueryRow(`SELECT `+foodLogColumns+` FROM food_logs WHERE id = ?`, id)
	f, err := scanFoodLog(row)
	if err == sql.ErrNoRows {
		return model.FoodLog{}, fmt.Errorf("food log %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.FoodLog{}, fmt.Errorf("get food log %d: %w", id, err)
	}
	return f, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFoodLog(r rowScanner) (model.FoodLog, error) {
	var f model.FoodLog
	var createdRaw string
	if err := r.Scan(&f.ID, &f.UserID, &f.FoodName, &f.Grams, &f.Calories, &f.ProteinG, &f.FatG, &f.CarbsG, &f.FiberG, &f.Source, &createdRaw); err != nil {
		return model.FoodLog{}, err
	}
	created, err := parseTimestamp(createdRaw)
	if err != nil {
		return model.FoodLog{}, err
	}
	f.CreatedAt = created
	return f, nil
}

// ListFoodLogs returns a user's records created in [from, to), oldest first.
func ListFoodLogs(db *sql.DB, userID int64, from, to time.Time) ([]model.FoodLog, error) {
	rows, err := db.Query(`SELECT `+foodLogColumns+`
FROM food_logs
WHERE user_id = ? AND created_at >= ? AND created_at < ?
ORDER BY created_at ASC, id ASC
`, userID, formatTimestamp(from), formatTimestamp(to))
	if err != nil {
		return nil, fmt.Errorf("list food logs: %w", err)
	}
	defer rows.Close()

	out := make([]model.FoodLog, 0)
	for rows.Next() {
		f, err := scanFoodLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan food log: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate food logs: %w", err)
	}
	return out, nil
}

// UpdateFoodLogNutrition overwrites weight and nutrition of a record in place.
func UpdateFoodLogNutrition(db *sql.DB, f model.FoodLog) error {
	if f.ID <= 0 {
		return fmt.Errorf("food log id must be > 0")
	}
	if f.Grams <= 0 {
		f.Grams = nutrition.DefaultGrams
	}
	if err := validateNonNegativeInt("calories", f.Calories); err != nil {
		return err
	}
	res, err := db.Exec(`
UPDATE food_logs
SET grams = ?, calories = ?, protein_g = ?, fat_g = ?, carbs_g = ?, fiber_g = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, f.Grams, f.Calories, f.ProteinG, f.FatG, f.CarbsG, f.FiberG, f.ID)
	if err != nil {
		return fmt.Errorf("update food log %d: %w", f.ID, err)
	}
	return requireAffected(res, fmt.Sprintf("food log %d", f.ID))
}

// DeleteFoodLog removes a record owned by userID.
func DeleteFoodLog(db *sql.DB, userID, id int64) error {
	res, err := db.Exec(`DELETE FROM food_logs WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete food log %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("food log %d", id))
}

// ReplaceFoodLog deletes oldID and inserts in within one transaction. The new
// record keeps the owner and creation time of the old one.
func ReplaceFoodLog(db *sql.DB, oldID int64, in FoodLogInput) (model.FoodLog, error) {
	old, err := GetFoodLog(db, oldID)
	if err != nil {
		return model.FoodLog{}, err
	}
	in.UserID = old.UserID
	in.CreatedAt = old.CreatedAt
	if err := validateFoodLog(&in); err != nil {
		return model.FoodLog{}, err
	}

	tx, err := db.Begin()
	if err != nil {
		return model.FoodLog{}, fmt.Errorf("begin replace tx: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM food_logs WHERE id = ?`, oldID)
	if err != nil {
		_ = tx.Rollback()
		return model.FoodLog{}, fmt.Errorf("delete food log %d: %w", oldID, err)
	}
	if err := requireAffected(res, fmt.Sprintf("food log %d", oldID)); err != nil {
		_ = tx.Rollback()
		return model.FoodLog{}, err
	}
	id, err := insertFoodLog(tx, in)
	if err != nil {
		_ = tx.Rollback()
		return model.FoodLog{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.FoodLog{}, fmt.Errorf("commit replace of food log %d: %w", oldID, err)
	}
	return GetFoodLog(db, id)
}

func requireAffected(res sql.Result, label string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for %s: %w", label, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", label, ErrNotFound)
	}
	return nil
}
