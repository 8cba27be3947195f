package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
)

const helpText = `📖 Команды бота:

🍽️ Еда:
Отправьте фото блюда или текст, например «гречка 200г»
/today — статистика за сегодня
/stats — статистика за период
/photo_detailed — подробный режим распознавания фото

👤 Профиль:
/register — заполнить профиль
/profile — мои данные
/delete_profile — удалить профиль
/weight 72,5 — записать вес, /weight — история

❓ Помощь:
/cancel — отменить текущее действие
/help — эта справка
/start — начать сначала`

const addFoodText = `🍽️ Отправьте мне:
• Фото еды — я распознаю продукты и посчитаю КБЖУ
• Текст — например: «гречка 200г» или «Курица гриль, 150г»`

func (b *Bot) handleCommand(ctx context.Context, u Update, user model.User) error {
	name, args := u.Command()
	switch name {
	case "start":
		return b.cmdStart(ctx, u, user)
	case "help":
		b.send(ctx, u.ChatID, helpText, nil)
	case "register":
		return b.startRegistration(ctx, u.ChatID, user)
	case "cancel":
		if b.store.EndAll(user.ID) {
			b.send(ctx, u.ChatID, "❌ Действие отменено.", nil)
		} else {
			b.send(ctx, u.ChatID, "Нет активных действий.", nil)
		}
	case "profile":
		p, ok, err := b.profile(ctx, u.ChatID, user)
		if err != nil || !ok {
			return err
		}
		b.send(ctx, u.ChatID, ProfileText(p), nil)
	case "delete_profile":
		return b.cmdDeleteProfile(ctx, u, user)
	case "today":
		return b.sendStats(ctx, u.ChatID, 0, user, service.PeriodToday)
	case "stats":
		if _, ok, err := b.profile(ctx, u.ChatID, user); err != nil || !ok {
			return err
		}
		b.send(ctx, u.ChatID, "📊 Выберите период для статистики:", statsButtons())
	case "weight":
		return b.cmdWeight(ctx, u, user, args)
	case "photo_detailed":
		if b.store.ToggleDetailed(user.ID) {
			b.send(ctx, u.ChatID, "🔬 Подробный режим включён: калории по фото оценивает модель.", nil)
		} else {
			b.send(ctx, u.ChatID, "📷 Подробный режим выключен: продукты с фото ищутся в базе.", nil)
		}
	case "admin_costs":
		return b.cmdAdminCosts(ctx, u)
	default:
		b.send(ctx, u.ChatID, "🤷 Неизвестная команда. Список команд: /help", nil)
	}
	return nil
}

func (b *Bot) cmdStart(ctx context.Context, u Update, user model.User) error {
	p, err := service.GetProfile(b.db, user.ID)
	if errors.Is(err, service.ErrNoProfile) {
		b.send(ctx, u.ChatID, "👋 Привет! Я ваш персональный диетолог.\n\n"+
			"Я помогу отслеживать питание и достигать целей.\n\n"+
			"Для начала нужно заполнить профиль:",
			[][]Button{{{Text: "📝 Зарегистрироваться", Data: cbStartRegister}}})
		return nil
	}
	if err != nil {
		return err
	}
	name := user.FirstName
	if name == "" {
		name = "друг"
	}
	b.send(ctx, u.ChatID, fmt.Sprintf("👋 С возвращением, %s!\n\n📊 Ваша дневная норма: %d ккал", name, p.DailyCalories),
		[][]Button{
			{{Text: "🍽️ Добавить еду", Data: cbStartAddFood}},
			{{Text: "📊 Статистика", Data: cbStartStats}},
		})
	return nil
}

func (b *Bot) startRegistration(ctx context.Context, chatID int64, user model.User) error {
	reply, err := b.registration.Start(user.ID)
	if errors.Is(err, service.ErrProfileExists) {
		b.send(ctx, chatID, "✅ У вас уже есть профиль. Посмотреть: /profile\nЧтобы заполнить заново, сначала удалите его: /delete_profile", nil)
		return nil
	}
	if err != nil {
		return err
	}
	b.send(ctx, chatID, reply.Text, optionRows(cbRegister, reply.Options))
	return nil
}

func (b *Bot) cmdDeleteProfile(ctx context.Context, u Update, user model.User) error {
	err := service.DeleteProfile(b.db, user.ID)
	if errors.Is(err, service.ErrNoProfile) {
		b.send(ctx, u.ChatID, "У вас нет профиля. Заполнить: /register", nil)
		return nil
	}
	if err != nil {
		return err
	}
	b.send(ctx, u.ChatID, "🗑️ Профиль удалён. Чтобы заполнить заново: /register", nil)
	return nil
}

func (b *Bot) cmdWeight(ctx context.Context, u Update, user model.User, args string) error {
	if args == "" {
		logs, err := service.ListWeights(b.db, user.ID, 10)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			b.send(ctx, u.ChatID, "⚖️ Записей веса пока нет. Добавить: /weight 72,5", nil)
			return nil
		}
		var sb strings.Builder
		sb.WriteString("⚖️ Последние измерения:")
		for _, w := range logs {
			fmt.Fprintf(&sb, "\n%s — %s кг", w.CreatedAt.In(b.loc).Format("02.01.2006"), formatNumber(w.WeightKG))
		}
		b.send(ctx, u.ChatID, sb.String(), nil)
		return nil
	}

	kg, err := strconv.ParseFloat(strings.ReplaceAll(strings.Fields(args)[0], ",", "."), 64)
	if err != nil || !model.ValidWeightKG(kg) {
		b.send(ctx, u.ChatID, fmt.Sprintf("❌ Вес должен быть числом от %d до %d кг, например: /weight 72,5", model.MinWeightKG, model.MaxWeightKG), nil)
		return nil
	}
	if _, err := service.AddWeight(b.db, user.ID, kg, "", b.now()); err != nil {
		return err
	}
	b.send(ctx, u.ChatID, fmt.Sprintf("✅ Вес %s кг записан.", formatNumber(kg)), nil)
	return nil
}

func (b *Bot) cmdAdminCosts(ctx context.Context, u Update) error {
	if !b.isAdmin(u.Sender.ID) {
		b.send(ctx, u.ChatID, "❌ Нет доступа.", nil)
		return nil
	}
	report, err := service.Costs(b.db, nil, 30, b.now())
	if err != nil {
		return err
	}
	b.send(ctx, u.ChatID, CostsText(report), nil)
	return nil
}

// sendStats answers with the stats of a named period. A non-zero messageID
// edits that message instead of sending a new one.
func (b *Bot) sendStats(ctx context.Context, chatID int64, messageID int, user model.User, period string) error {
	p, ok, err := b.profile(ctx, chatID, user)
	if err != nil || !ok {
		return err
	}
	from, to, err := service.PeriodRange(period, b.now(), b.loc)
	if err != nil {
		return err
	}

	var text string
	switch period {
	case service.PeriodToday, service.PeriodYesterday:
		day, err := service.DailyStats(b.db, user.ID, from, b.loc)
		if err != nil {
			return err
		}
		text = DayText(periodTitles[period], day, p)
	default:
		stats, err := service.Stats(b.db, user.ID, from, to, b.loc)
		if err != nil {
			return err
		}
		text = PeriodText(periodTitles[period], stats)
	}

	if messageID != 0 {
		return b.tx.EditText(ctx, chatID, messageID, text, nil)
	}
	b.send(ctx, chatID, text, nil)
	return nil
}

func statsButtons() [][]Button {
	return [][]Button{
		{{Text: "📅 Сегодня", Data: cbStats + service.PeriodToday}},
		{{Text: "📅 Вчера", Data: cbStats + service.PeriodYesterday}},
		{{Text: "📊 За неделю", Data: cbStats + service.PeriodWeek}},
		{{Text: "📈 За месяц", Data: cbStats + service.PeriodMonth}},
	}
}
