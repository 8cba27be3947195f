package service

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
)

// DefaultUTCOffsetHours is the display timezone every day boundary uses.
const DefaultUTCOffsetHours = 3

func LocalZone(offsetHours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
}

type DayStats struct {
	Date     string          `json:"date"`
	Calories int             `json:"calories"`
	ProteinG float64         `json:"protein_g"`
	FatG     float64         `json:"fat_g"`
	CarbsG   float64         `json:"carbs_g"`
	FiberG   float64         `json:"fiber_g"`
	Count    int             `json:"count"`
	Entries  []model.FoodLog `json:"entries,omitempty"`
}

type DaySummary struct {
	Date     string `json:"date"`
	Calories int    `json:"calories"`
}

type PeriodStats struct {
	FromDate      string      `json:"from_date"`
	ToDate        string      `json:"to_date"`
	TotalCalories int         `json:"total_calories"`
	AvgCalories   int         `json:"avg_calories"`
	MinDay        *DaySummary `json:"min_day,omitempty"`
	MaxDay        *DaySummary `json:"max_day,omitempty"`
	DaysWithData  int         `json:"days_with_data"`
	ProteinG      float64     `json:"protein_g"`
	FatG          float64     `json:"fat_g"`
	CarbsG        float64     `json:"carbs_g"`
	FiberG        float64     `json:"fiber_g"`
	Days          []DayStats  `json:"days"`
}

// LocalDayBounds returns the UTC instants of local midnight on day's calendar
// date in loc and of the following midnight.
func LocalDayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// DailyStats sums a user's records for one local calendar day.
func DailyStats(db *sql.DB, userID int64, day time.Time, loc *time.Location) (DayStats, error) {
	from, to := LocalDayBounds(day, loc)
	logs, err := ListFoodLogs(db, userID, from, to)
	if err != nil {
		return DayStats{}, err
	}
	out := DayStats{Date: day.In(loc).Format("2006-01-02"), Entries: logs}
	for _, f := range logs {
		out.add(f)
	}
	out.round()
	return out, nil
}

// TodayForUser is DailyStats for the local day containing now.
func TodayForUser(db *sql.DB, userID int64, now time.Time, loc *time.Location) (DayStats, error) {
	return DailyStats(db, userID, now, loc)
}

// Stats computes rollups across the local dates from..to inclusive. Records are
// bucketed by their local calendar day; days without records are left out of
// the average, min, max and day count.
func Stats(db *sql.DB, userID int64, from, to time.Time, loc *time.Location) (PeriodStats, error) {
	start, _ := LocalDayBounds(from, loc)
	_, end := LocalDayBounds(to, loc)
	if !start.Before(end) {
		return PeriodStats{}, fmt.Errorf("from date must be <= to date")
	}
	logs, err := ListFoodLogs(db, userID, start, end)
	if err != nil {
		return PeriodStats{}, err
	}

	buckets := map[string]*DayStats{}
	for _, f := range logs {
		key := f.CreatedAt.In(loc).Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &DayStats{Date: key}
			buckets[key] = b
		}
		b.add(f)
	}

	out := PeriodStats{
		FromDate: from.In(loc).Format("2006-01-02"),
		ToDate:   to.In(loc).Format("2006-01-02"),
		Days:     make([]DayStats, 0, len(buckets)),
	}
	for _, b := range buckets {
		b.round()
		out.Days = append(out.Days, *b)
	}
	sort.Slice(out.Days, func(i, j int) bool { return out.Days[i].Date < out.Days[j].Date })

	for _, d := range out.Days {
		out.TotalCalories += d.Calories
		out.ProteinG += d.ProteinG
		out.FatG += d.FatG
		out.CarbsG += d.CarbsG
		out.FiberG += d.FiberG
	}
	out.DaysWithData = len(out.Days)
	if out.DaysWithData > 0 {
		out.AvgCalories = out.TotalCalories / out.DaysWithData
		out.MinDay, out.MaxDay = extremeDays(out.Days)
	}
	out.ProteinG = nutrition.Round1(out.ProteinG)
	out.FatG = nutrition.Round1(out.FatG)
	out.CarbsG = nutrition.Round1(out.CarbsG)
	out.FiberG = nutrition.Round1(out.FiberG)
	return out, nil
}

// Named periods offered in the chat and on the command line.
const (
	PeriodToday     = "today"
	PeriodYesterday = "yesterday"
	PeriodWeek      = "week"
	PeriodMonth     = "month"
)

// PeriodRange maps a named period to its inclusive local date range. A week
// is the last 7 local days including today, a month the last 30.
func PeriodRange(period string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	today := now.In(loc)
	switch strings.ToLower(strings.TrimSpace(period)) {
	case PeriodToday, "":
		return today, today, nil
	case PeriodYesterday:
		y := today.AddDate(0, 0, -1)
		return y, y, nil
	case PeriodWeek:
		return today.AddDate(0, 0, -6), today, nil
	case PeriodMonth:
		return today.AddDate(0, 0, -29), today, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q, expected today, yesterday, week or month", period)
	}
}

func (d *DayStats) add(f model.FoodLog) {
	d.Calories += f.Calories
	d.ProteinG += f.ProteinG
	d.FatG += f.FatG
	d.CarbsG += f.CarbsG
	d.FiberG += f.FiberG
	d.Count++
}

func (d *DayStats) round() {
	d.ProteinG = nutrition.Round1(d.ProteinG)
	d.FatG = nutrition.Round1(d.FatG)
	d.CarbsG = nutrition.Round1(d.CarbsG)
	d.FiberG = nutrition.Round1(d.FiberG)
}

func extremeDays(days []DayStats) (*DaySummary, *DaySummary) {
	if len(days) == 0 {
		return nil, nil
	}
	minDay := DaySummary{Date: days[0].Date, Calories: days[0].Calories}
	maxDay := minDay
	for _, d := range days[1:] {
		if d.Calories < minDay.Calories {
			minDay = DaySummary{Date: d.Date, Calories: d.Calories}
		}
		if d.Calories > maxDay.Calories {
			maxDay = DaySummary{Date: d.Date, Calories: d.Calories}
		}
	}
	return &minDay, &maxDay
}
