package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/intent"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
)

// DefaultEditTimeout bounds an edit flow from the moment it starts.
const DefaultEditTimeout = 300 * time.Second

// ActionBack is the option value that leaves the edit flow untouched.
const ActionBack = "back"

const editUsage = `Напишите, что изменить, например:
• «150 грамм» или «сто пятьдесят грамм»
• «300 калорий»
• «замени на рис»
• «второе 200 г» — если в записи несколько продуктов`

type Interpreter interface {
	Interpret(ctx context.Context, text string, candidates []string, userID *int64) intent.Intent
}

type Resolver interface {
	ResolveOrEstimate(ctx context.Context, name string, grams int) nutrition.Result
}

// Editor runs the single-state edit flow on a logged record.
type Editor struct {
	db          *sql.DB
	store       *Store
	interpreter Interpreter
	resolver    Resolver
	timeout     time.Duration
	loc         *time.Location
	logger      *slog.Logger
}

type EditorOption func(*Editor)

func WithEditTimeout(d time.Duration) EditorOption {
	return func(e *Editor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLocation sets the zone whose calendar day supplies the candidate list.
func WithLocation(loc *time.Location) EditorOption {
	return func(e *Editor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithLogger(l *slog.Logger) EditorOption {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEditor(db *sql.DB, store *Store, interpreter Interpreter, resolver Resolver, opts ...EditorOption) *Editor {
	e := &Editor{
		db:          db,
		store:       store,
		interpreter: interpreter,
		resolver:    resolver,
		timeout:     DefaultEditTimeout,
		loc:         service.LocalZone(service.DefaultUTCOffsetHours),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start enters the flow for a record owned by userID.
func (e *Editor) Start(userID, recordID int64) (Reply, error) {
	rec, err := service.GetFoodLog(e.db, recordID)
	if err != nil {
		return Reply{}, err
	}
	if rec.UserID != userID {
		return Reply{}, fmt.Errorf("food log %d: %w", recordID, service.ErrNotFound)
	}
	c := e.store.Begin(userID, KindEdit, StateAwaitingEditInput)
	c.RecordID = rec.ID
	return Reply{
		Text:    fmt.Sprintf("✏️ Изменение: %s, %d г, %d ккал\n\n%s", rec.FoodName, rec.Grams, rec.Calories, editUsage),
		Options: []Option{{Label: "⬅️ Назад", Value: ActionBack}},
	}, nil
}

// Cancel leaves the flow without touching any record.
func (e *Editor) Cancel(userID int64) bool {
	if _, ok := e.store.Get(userID, KindEdit); !ok {
		return false
	}
	e.store.End(userID, KindEdit)
	return true
}

// Handle processes one message of the flow. Input that arrives after the
// timeout ends the flow with ErrExpired whatever it says.
func (e *Editor) Handle(ctx context.Context, userID int64, text string) (Reply, error) {
	c, ok := e.store.Get(userID, KindEdit)
	if !ok {
		return Reply{}, ErrNoSession
	}
	now := e.store.Now()
	if now.Sub(c.StartedAt) > e.timeout {
		e.store.End(userID, KindEdit)
		return Reply{}, ErrExpired
	}
	if isBack(text) {
		e.store.End(userID, KindEdit)
		return Reply{Text: "↩️ Изменение отменено.", Done: true}, nil
	}

	today, err := service.TodayForUser(e.db, userID, now, e.loc)
	if err != nil {
		return Reply{}, err
	}
	names := make([]string, 0, len(today.Entries))
	for _, f := range today.Entries {
		names = append(names, f.FoodName)
	}

	it := e.interpreter.Interpret(ctx, text, names, &userID)
	e.logger.Debug("Edit intent", "user", userID, "session", c.ID, "kind", it.Kind.String(), "value", it.Value, "target", it.Target)

	switch it.Kind {
	case intent.ChangeWeight, intent.ChangeCalories, intent.ChangeProduct:
	case intent.Unrecognized:
		return Reply{Text: "🤷 Не понял, что изменить.\n\n" + editUsage, Options: backOption()}, nil
	default:
		return e.clarify(names), nil
	}
	if it.Kind != intent.ChangeProduct && it.Value <= 0 {
		return e.clarify(names), nil
	}

	target, err := e.target(c, it, today.Entries)
	if err != nil {
		e.store.End(userID, KindEdit)
		return Reply{}, err
	}

	var updated model.FoodLog
	switch it.Kind {
	case intent.ChangeWeight:
		res := resultOf(target).Rescaled(it.Value)
		updated = applyResult(target, res)
		if err := service.UpdateFoodLogNutrition(e.db, updated); err != nil {
			return Reply{}, err
		}
	case intent.ChangeCalories:
		updated = target
		updated.Calories = it.Value
		if err := service.UpdateFoodLogNutrition(e.db, updated); err != nil {
			return Reply{}, err
		}
	case intent.ChangeProduct:
		res := e.resolver.ResolveOrEstimate(ctx, it.NewProduct, target.Grams)
		updated, err = service.ReplaceFoodLog(e.db, target.ID, service.FoodLogFromResult(userID, res, ""))
		if err != nil {
			return Reply{}, err
		}
	}

	e.store.End(userID, KindEdit)
	return Reply{
		Text:   fmt.Sprintf("✅ Обновлено: %s, %d г, %d ккал", updated.FoodName, updated.Grams, updated.Calories),
		Done:   true,
		Record: &updated,
	}, nil
}

// target is the record the intent names among today's entries, or the
// record the flow was opened on.
func (e *Editor) target(c *Context, it intent.Intent, entries []model.FoodLog) (model.FoodLog, error) {
	if it.Target != "" {
		names := make([]string, len(entries))
		for i, f := range entries {
			names[i] = f.FoodName
		}
		if idx, ok := intent.ResolveTarget(it.Target, names); ok {
			return entries[idx], nil
		}
	}
	rec, err := service.GetFoodLog(e.db, c.RecordID)
	if err != nil {
		return model.FoodLog{}, err
	}
	if rec.UserID != c.UserID {
		return model.FoodLog{}, fmt.Errorf("food log %d: %w", c.RecordID, service.ErrNotFound)
	}
	return rec, nil
}

func (e *Editor) clarify(names []string) Reply {
	var b strings.Builder
	b.WriteString("🤔 Уточните, какой продукт и что изменить.")
	if len(names) > 0 {
		b.WriteString("\n\nЗаписи за сегодня:")
		for i, n := range names {
			fmt.Fprintf(&b, "\n%d. %s", i+1, n)
		}
	}
	b.WriteString("\n\nНапример: «второе 150 грамм» или «рис 300 калорий»")
	return Reply{Text: b.String(), Options: backOption()}
}

func backOption() []Option {
	return []Option{{Label: "⬅️ Назад", Value: ActionBack}}
}

func isBack(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case ActionBack, "назад", "отмена", "/cancel":
		return true
	}
	return false
}

func resultOf(f model.FoodLog) nutrition.Result {
	return nutrition.Result{
		Name:     f.FoodName,
		Grams:    f.Grams,
		Calories: f.Calories,
		ProteinG: f.ProteinG,
		FatG:     f.FatG,
		CarbsG:   f.CarbsG,
		FiberG:   f.FiberG,
		Source:   f.Source,
	}
}

func applyResult(f model.FoodLog, r nutrition.Result) model.FoodLog {
	f.Grams = r.Grams
	f.Calories = r.Calories
	f.ProteinG = r.ProteinG
	f.FatG = r.FatG
	f.CarbsG = r.CarbsG
	f.FiberG = r.FiberG
	return f
}
