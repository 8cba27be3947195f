package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
)

const progressCells = 25

var (
	gramsPattern   = regexp.MustCompile(`(?i)(\d+)\s*(граммов|грамма|грамм|гр|г|g)(?:[^\p{L}]|$)`)
	trailingGrams  = regexp.MustCompile(`(?i)\s*,?\s*\d+\s*(граммов|грамма|грамм|гр|г|g)\s*$`)
	leadingGrams   = regexp.MustCompile(`(?i)^\s*\d+\s*(граммов|грамма|грамм|гр|г|g)\s+`)
	activityLabels = map[model.ActivityLevel]string{model.ActivityLow: "низкая", model.ActivityModerate: "средняя", model.ActivityHigh: "высокая"}
	goalLabels     = map[model.Goal]string{model.GoalLose: "похудеть", model.GoalMaintain: "поддерживать вес", model.GoalGain: "набрать массу"}
	genderLabels   = map[model.Gender]string{model.GenderMale: "мужской", model.GenderFemale: "женский"}
	periodTitles   = map[string]string{service.PeriodToday: "Сегодня", service.PeriodYesterday: "Вчера", service.PeriodWeek: "за неделю", service.PeriodMonth: "за месяц"}
)

// ParseFoodText splits "Курица гриль, 150г" into a name and a weight.
// Without a weight the portion is nutrition.DefaultGrams.
func ParseFoodText(text string) (string, int) {
	text = strings.TrimSpace(text)
	m := gramsPattern.FindStringSubmatch(text)
	if m == nil {
		return text, nutrition.DefaultGrams
	}
	grams, err := strconv.Atoi(m[1])
	if err != nil || grams <= 0 {
		grams = nutrition.DefaultGrams
	}
	name := trailingGrams.ReplaceAllString(text, "")
	if name == text {
		name = leadingGrams.ReplaceAllString(text, "")
	}
	name = strings.TrimSpace(strings.Trim(name, ","))
	if name == "" {
		name = text
	}
	return name, grams
}

// ProgressBar draws eaten against target in 25 cells.
func ProgressBar(eaten, target int) string {
	if target <= 0 {
		return strings.Repeat("▯", progressCells)
	}
	ratio := float64(eaten) / float64(target)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	filled := int(ratio * progressCells)
	return strings.Repeat("🟩", filled) + strings.Repeat("▯", progressCells-filled)
}

func ProgressCaption(eaten, target int) string {
	remaining := target - eaten
	left := fmt.Sprintf("%d ккал", remaining)
	if remaining < 0 {
		left = fmt.Sprintf("%d ккал ПРЕВЫШЕНО", -remaining)
	}
	return fmt.Sprintf("📊 Прогресс на сегодня:\n%d из %d ккал\n%s\nОсталось: %s",
		eaten, target, ProgressBar(eaten, target), left)
}

func percent(eaten, target int) int {
	if target <= 0 {
		return 0
	}
	return eaten * 100 / target
}

func ProfileText(p model.Profile) string {
	var b strings.Builder
	b.WriteString("👤 Ваш профиль\n\n")
	fmt.Fprintf(&b, "Пол: %s\nВозраст: %d\nРост: %d см\nВес: %s кг\n", genderLabels[p.Gender], p.Age, p.HeightCM, formatNumber(p.WeightKG))
	if p.TargetWeightKG != nil {
		fmt.Fprintf(&b, "Желаемый вес: %s кг\n", formatNumber(*p.TargetWeightKG))
	}
	fmt.Fprintf(&b, "Цель: %s\nАктивность: %s\n\n", goalLabels[p.Goal], activityLabels[p.Activity])
	fmt.Fprintf(&b, "🎯 Дневная норма: %d ккал\nБелки: %d г · Жиры: %d г · Углеводы: %d г",
		p.DailyCalories, p.DailyProteinG, p.DailyFatG, p.DailyCarbsG)
	return b.String()
}

func DayText(title string, d service.DayStats, p model.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Статистика: %s\n\n", title)
	fmt.Fprintf(&b, "🔥 Калории: %d / %d ккал\n", d.Calories, p.DailyCalories)
	fmt.Fprintf(&b, "📈 Прогресс: %d%%\n", percent(d.Calories, p.DailyCalories))
	fmt.Fprintf(&b, "📉 Осталось: %d ккал\n\n", p.DailyCalories-d.Calories)
	fmt.Fprintf(&b, "🥗 БЖУ:\n   Белки: %sг / %dг\n   Жиры: %sг / %dг\n   Углеводы: %sг / %dг\n   Клетчатка: %sг\n\n",
		formatNumber(d.ProteinG), p.DailyProteinG, formatNumber(d.FatG), p.DailyFatG,
		formatNumber(d.CarbsG), p.DailyCarbsG, formatNumber(d.FiberG))
	fmt.Fprintf(&b, "🍽️ Съедено (%d записей):\n", d.Count)
	if len(d.Entries) == 0 {
		b.WriteString("Нет записей")
	}
	for i, f := range d.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• %s — %d г, %d ккал", f.FoodName, f.Grams, f.Calories)
	}
	return b.String()
}

func PeriodText(title string, s service.PeriodStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Статистика %s\n%s — %s\n\n", title, s.FromDate, s.ToDate)
	fmt.Fprintf(&b, "🔥 Всего калорий: %d ккал\n", s.TotalCalories)
	fmt.Fprintf(&b, "📈 Среднее в день: %d ккал\n", s.AvgCalories)
	if s.MinDay != nil && s.MaxDay != nil {
		fmt.Fprintf(&b, "📉 Мин: %d (%s) / Макс: %d (%s) ккал\n", s.MinDay.Calories, s.MinDay.Date, s.MaxDay.Calories, s.MaxDay.Date)
	}
	fmt.Fprintf(&b, "📅 Дней с записями: %d\n\n", s.DaysWithData)
	fmt.Fprintf(&b, "🥗 БЖУ %s:\n   Белки: %sг\n   Жиры: %sг\n   Углеводы: %sг\n   Клетчатка: %sг",
		title, formatNumber(s.ProteinG), formatNumber(s.FatG), formatNumber(s.CarbsG), formatNumber(s.FiberG))
	return b.String()
}

func CostsText(r service.CostReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💰 Расходы на AI (%d дней)\n\n", r.Days)
	fmt.Fprintf(&b, "Общие затраты: $%.4f (~%.2f₽ по курсу %s)\n", r.CostUSD, r.CostRUB, formatNumber(r.Rate))
	fmt.Fprintf(&b, "Всего запросов: %d (ошибок: %d)\n", r.Requests, r.Failed)
	if len(r.ByType) > 0 {
		b.WriteString("\n🧾 По типам:\n")
		for _, t := range r.ByType {
			fmt.Fprintf(&b, "• %s: $%.4f (%d запр.)\n", t.RequestType, t.CostUSD, t.Requests)
		}
	}
	if len(r.ByUser) > 0 {
		b.WriteString("\n👥 По пользователям:\n")
		for _, u := range r.ByUser {
			fmt.Fprintf(&b, "• %s: $%.4f (%d запр.)\n", u.Name, u.CostUSD, u.Requests)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FoodListText is the plain-text stand-in for the table image.
func FoodListText(items []nutrition.Result) string {
	var b strings.Builder
	b.WriteString("✅ Добавлено:\n")
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. %s — %dг\n   🔥 %d ккал | Б:%sг Ж:%sг У:%sг",
			i+1, it.Name, it.Grams, it.Calories, formatNumber(it.ProteinG), formatNumber(it.FatG), formatNumber(it.CarbsG))
	}
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(nutrition.Round1(v), 'f', -1, 64)
}
