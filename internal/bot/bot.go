package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/events"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/session"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/vision"
)

const (
	msgNeedProfile = "❌ Сначала заполните профиль: /register"
	msgFailed      = "❌ Не удалось обработать сообщение. Попробуйте ещё раз."
	msgNotFound    = "⚠️ Запись не найдена."
)

type FoodResolver interface {
	Resolve(ctx context.Context, name string, grams int) (nutrition.Result, error)
	ResolveOrEstimate(ctx context.Context, name string, grams int) nutrition.Result
}

type Vision interface {
	ExtractFoods(ctx context.Context, image []byte, userID *int64) vision.Detection
	ExtractNutrition(ctx context.Context, image []byte, userID *int64) vision.Estimate
}

type UpdateCounter interface {
	Update(kind string)
}

// Options wires a Bot. DB, Transport, Resolver, Vision and Interpreter are
// required; the rest have defaults.
type Options struct {
	DB          *sql.DB
	Transport   Transport
	Resolver    FoodResolver
	Vision      Vision
	Interpreter session.Interpreter
	Store       *session.Store
	Events      *events.Emitter
	Metrics     UpdateCounter
	// IsAdmin gates /admin_costs.
	IsAdmin     func(platformID int64) bool
	Location    *time.Location
	EditTimeout time.Duration
	Logger      *slog.Logger
}

type Bot struct {
	db           *sql.DB
	tx           Transport
	resolver     FoodResolver
	vision       Vision
	store        *session.Store
	registration *session.Registration
	editor       *session.Editor
	events       *events.Emitter
	metrics      UpdateCounter
	isAdmin      func(int64) bool
	loc          *time.Location
	logger       *slog.Logger
}

func New(opts Options) (*Bot, error) {
	switch {
	case opts.DB == nil:
		return nil, errors.New("bot: DB is required")
	case opts.Transport == nil:
		return nil, errors.New("bot: Transport is required")
	case opts.Resolver == nil:
		return nil, errors.New("bot: Resolver is required")
	case opts.Vision == nil:
		return nil, errors.New("bot: Vision is required")
	case opts.Interpreter == nil:
		return nil, errors.New("bot: Interpreter is required")
	}
	if opts.Store == nil {
		opts.Store = session.NewStore()
	}
	if opts.Location == nil {
		opts.Location = service.LocalZone(service.DefaultUTCOffsetHours)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(int64) bool { return false }
	}
	b := &Bot{
		db:           opts.DB,
		tx:           opts.Transport,
		resolver:     opts.Resolver,
		vision:       opts.Vision,
		store:        opts.Store,
		registration: session.NewRegistration(opts.DB, opts.Store),
		events:       opts.Events,
		metrics:      opts.Metrics,
		isAdmin:      opts.IsAdmin,
		loc:          opts.Location,
		logger:       opts.Logger,
	}
	b.editor = session.NewEditor(opts.DB, opts.Store, opts.Interpreter, opts.Resolver,
		session.WithEditTimeout(opts.EditTimeout),
		session.WithLocation(opts.Location),
		session.WithLogger(opts.Logger),
	)
	return b, nil
}

// Handle processes one update. Failures are logged and answered with a
// generic message; they never escape.
func (b *Bot) Handle(ctx context.Context, u Update) {
	kind := u.Kind()
	if b.metrics != nil {
		b.metrics.Update(kind)
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Update handler panicked", "update", u.ID, "user", u.Sender.ID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			b.send(ctx, u.ChatID, msgFailed, nil)
		}
	}()

	user, err := service.GetOrCreateUser(b.db, service.UserInput{
		PlatformID: u.Sender.ID,
		Username:   u.Sender.Username,
		FirstName:  u.Sender.FirstName,
		LastName:   u.Sender.LastName,
	})
	if err != nil {
		b.fail(ctx, u, "resolve user", err)
		return
	}

	switch kind {
	case KindCallback:
		err = b.handleCallback(ctx, u, user)
	case KindPhoto:
		err = b.handlePhoto(ctx, u, user)
	case KindCommand:
		err = b.handleCommand(ctx, u, user)
	default:
		err = b.handleText(ctx, u, user)
	}
	if err != nil {
		b.fail(ctx, u, "handle "+kind, err)
	}
}

func (b *Bot) fail(ctx context.Context, u Update, op string, err error) {
	b.logger.Error("Update failed", "op", op, "update", u.ID, "user", u.Sender.ID, "error", err)
	b.send(ctx, u.ChatID, msgFailed, nil)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, buttons [][]Button) {
	if _, err := b.tx.SendText(ctx, chatID, text, buttons); err != nil {
		b.logger.Warn("Send message failed", "chat", chatID, "error", err)
	}
}

// profile returns the user's profile, telling the user to register when
// there is none.
func (b *Bot) profile(ctx context.Context, chatID int64, user model.User) (model.Profile, bool, error) {
	p, err := service.GetProfile(b.db, user.ID)
	if errors.Is(err, service.ErrNoProfile) {
		b.send(ctx, chatID, msgNeedProfile, nil)
		return model.Profile{}, false, nil
	}
	if err != nil {
		return model.Profile{}, false, err
	}
	return p, true, nil
}

func (b *Bot) now() time.Time {
	return b.store.Now()
}

func optionRows(prefix string, opts []session.Option) [][]Button {
	if len(opts) == 0 {
		return nil
	}
	rows := make([][]Button, 0, len(opts))
	for _, o := range opts {
		rows = append(rows, []Button{{Text: o.Label, Data: prefix + o.Value}})
	}
	return rows
}

func recordButtons(recordID int64) [][]Button {
	id := fmt.Sprint(recordID)
	return [][]Button{{
		{Text: "✏️ Изменить", Data: cbEdit + id},
		{Text: "🗑️ Удалить", Data: cbDelete + id},
	}}
}
