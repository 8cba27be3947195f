package service

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
)

type ProfileInput struct {
	Gender         model.Gender
	Age            int
	HeightCM       int
	WeightKG       float64
	TargetWeightKG *float64
	Goal           model.Goal
	Activity       model.ActivityLevel
}

type DailyNeeds struct {
	BMR      float64 `json:"bmr"`
	TDEE     int     `json:"tdee"`
	Calories int     `json:"calories"`
	ProteinG int     `json:"protein_g"`
	FatG     int     `json:"fat_g"`
	CarbsG   int     `json:"carbs_g"`
}

var activityMultipliers = map[model.ActivityLevel]float64{
	model.ActivityLow:      1.2,
	model.ActivityModerate: 1.55,
	model.ActivityHigh:     1.725,
}

var goalAdjustments = map[model.Goal]int{
	model.GoalLose:     -500,
	model.GoalMaintain: 0,
	model.GoalGain:     300,
}

// CalculateDailyNeeds applies Mifflin-St Jeor with a 30/30/40 macro split.
func CalculateDailyNeeds(in ProfileInput) DailyNeeds {
	return NeedsFromBMR(BMR(in), in.Activity, in.Goal)
}

// BMR is the Mifflin-St Jeor basal metabolic rate in kcal.
func BMR(in ProfileInput) float64 {
	bmr := 10*in.WeightKG + 6.25*float64(in.HeightCM) - 5*float64(in.Age)
	if in.Gender == model.GenderMale {
		return bmr + 5
	}
	return bmr - 161
}

// NeedsFromBMR derives the daily targets from a basal rate. TDEE and the
// macro grams are truncated toward zero.
func NeedsFromBMR(bmr float64, activity model.ActivityLevel, goal model.Goal) DailyNeeds {
	multiplier, ok := activityMultipliers[activity]
	if !ok {
		multiplier = activityMultipliers[model.ActivityModerate]
	}
	tdee := int(bmr * multiplier)
	calories := tdee + goalAdjustments[goal]
	if calories < 0 {
		calories = 0
	}
	return DailyNeeds{
		BMR:      bmr,
		TDEE:     tdee,
		Calories: calories,
		ProteinG: int(float64(calories) * 0.3 / 4),
		FatG:     int(float64(calories) * 0.3 / 9),
		CarbsG:   int(float64(calories) * 0.4 / 4),
	}
}

func ValidateProfileInput(in ProfileInput) error {
	if !in.Gender.Valid() {
		return fmt.Errorf("gender must be male or female")
	}
	if in.Age < model.MinAge || in.Age > model.MaxAge {
		return fmt.Errorf("age must be between %d and %d", model.MinAge, model.MaxAge)
	}
	if in.HeightCM < model.MinHeightCM || in.HeightCM > model.MaxHeightCM {
		return fmt.Errorf("height must be between %d and %d cm", model.MinHeightCM, model.MaxHeightCM)
	}
	if !model.ValidWeightKG(in.WeightKG) {
		return fmt.Errorf("weight must be between %d and %d kg", model.MinWeightKG, model.MaxWeightKG)
	}
	if in.TargetWeightKG != nil && !model.ValidWeightKG(*in.TargetWeightKG) {
		return fmt.Errorf("target weight must be between %d and %d kg", model.MinWeightKG, model.MaxWeightKG)
	}
	if !in.Goal.Valid() {
		return fmt.Errorf("goal must be lose, maintain or gain")
	}
	if !in.Activity.Valid() {
		return fmt.Errorf("activity must be low, moderate or high")
	}
	return nil
}

// CreateProfile stores a profile with its daily targets. A user has at most
// one profile; a second attempt returns ErrProfileExists.
func CreateProfile(db *sql.DB, userID int64, in ProfileInput) (model.Profile, error) {
	if err := ValidateProfileInput(in); err != nil {
		return model.Profile{}, err
	}
	if _, err := GetProfile(db, userID); err == nil {
		return model.Profile{}, ErrProfileExists
	} else if !errors.Is(err, ErrNoProfile) {
		return model.Profile{}, err
	}

	needs := CalculateDailyNeeds(in)
	_, err := db.Exec(`
INSERT INTO profiles(user_id, gender, age, height_cm, current_weight_kg, target_weight_kg, goal, activity_level,
  daily_calories, daily_protein, daily_fat, daily_carbs)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, userID, string(in.Gender), in.Age, in.HeightCM, in.WeightKG, in.TargetWeightKG, string(in.Goal), string(in.Activity),
		needs.Calories, needs.ProteinG, needs.FatG, needs.CarbsG)
	if err != nil {
		return model.Profile{}, fmt.Errorf("insert profile for user %d: %w", userID, err)
	}
	return GetProfile(db, userID)
}

func GetProfile(db *sql.DB, userID int64) (model.Profile, error) {
	var p model.Profile
	var target sql.NullFloat64
	var gender, goal, activity, createdRaw string
	err := db.QueryRow(`
SELECT id, user_id, gender, age, height_cm, current_weight_kg, target_weight_kg, goal, activity_level,
  daily_calories, daily_protein, daily_fat, daily_carbs, created_at
FROM profiles WHERE user_id = ?
`, userID).Scan(&p.ID, &p.UserID, &gender, &p.Age, &p.HeightCM, &p.WeightKG, &target, &goal, &activity,
		&p.DailyCalories, &p.DailyProteinG, &p.DailyFatG, &p.DailyCarbsG, &createdRaw)
	if err == sql.ErrNoRows {
		return model.Profile{}, ErrNoProfile
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("get profile for user %d: %w", userID, err)
	}
	p.Gender = model.Gender(gender)
	p.Goal = model.Goal(goal)
	p.Activity = model.ActivityLevel(activity)
	if target.Valid {
		v := target.Float64
		p.TargetWeightKG = &v
	}
	created, err := parseTimestamp(createdRaw)
	if err != nil {
		return model.Profile{}, err
	}
	p.CreatedAt = created
	return p, nil
}

func HasProfile(db *sql.DB, userID int64) (bool, error) {
	_, err := GetProfile(db, userID)
	if errors.Is(err, ErrNoProfile) {
		return false, nil
	}
	return err == nil, err
}

// DeleteProfile removes the profile so the user can register again. Food and
// weight history is kept.
func DeleteProfile(db *sql.DB, userID int64) error {
	res, err := db.Exec(`DELETE FROM profiles WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete profile for user %d: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for profile of user %d: %w", userID, err)
	}
	if affected == 0 {
		return ErrNoProfile
	}
	return nil
}
