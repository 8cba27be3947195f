package model

import (
	"math"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Goal string

const (
	GoalLose     Goal = "lose"
	GoalMaintain Goal = "maintain"
	GoalGain     Goal = "gain"
)

type ActivityLevel string

const (
	ActivityLow      ActivityLevel = "low"
	ActivityModerate ActivityLevel = "moderate"
	ActivityHigh     ActivityLevel = "high"
)

// Accepted profile ranges, inclusive.
const (
	MinAge      = 10
	MaxAge      = 100
	MinHeightCM = 100
	MaxHeightCM = 250
	MinWeightKG = 30
	MaxWeightKG = 200
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

func (g Goal) Valid() bool {
	return g == GoalLose || g == GoalMaintain || g == GoalGain
}

func (a ActivityLevel) Valid() bool {
	return a == ActivityLow || a == ActivityModerate || a == ActivityHigh
}

type User struct {
	ID         int64
	PlatformID int64
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
}

// DisplayName picks the most human-friendly identifier available.
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return u.Username
	case u.FirstName != "":
		return u.FirstName
	default:
		return ""
	}
}

type Profile struct {
	ID             int64
	UserID         int64
	Gender         Gender
	Age            int
	HeightCM       int
	WeightKG       float64
	TargetWeightKG *float64
	Goal           Goal
	Activity       ActivityLevel
	DailyCalories  int
	DailyProteinG  int
	DailyFatG      int
	DailyCarbsG    int
	CreatedAt      time.Time
}

type FoodLog struct {
	ID        int64
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

type FoodCacheEntry struct {
	ID         int64
	NameNorm   string
	Calories   float64
	ProteinG   float64
	FatG       float64
	CarbsG     float64
	FiberG     float64
	Source     string
	ExternalID string
	UsageCount int
	CreatedAt  time.Time
}

type UsageLogEntry struct {
	ID           int64
	UserID       *int64
	RequestID    string
	RequestType  string
	Model        string
	CostUSD      float64
	TokensInput  int
	TokensOutput int
	FoodName     string
	Error        string
	CreatedAt    time.Time
}

type WeightLog struct {
	ID        int64
	UserID    int64
	WeightKG  float64
	Note      string
	CreatedAt time.Time
}

// ValidWeightKG reports whether kg is a finite body weight within bounds.
func ValidWeightKG(kg float64) bool {
	if math.IsNaN(kg) || math.IsInf(kg, 0) {
		return false
	}
	return kg >= MinWeightKG && kg <= MaxWeightKG
}
