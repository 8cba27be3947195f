package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/session"
)

// Callback data prefixes carried by inline buttons.
const (
	cbStartRegister = "start:register"
	cbStartAddFood  = "start:add_food"
	cbStartStats    = "start:stats"
	cbRegister      = "reg:"
	cbStats         = "stats:"
	cbEdit          = "edit:"
	cbEditAction    = "editact:"
	cbDelete        = "del:"
)

func (b *Bot) handleCallback(ctx context.Context, u Update, user model.User) error {
	if err := b.tx.AnswerCallback(ctx, u.CallbackID, ""); err != nil {
		b.logger.Warn("Answer callback failed", "callback", u.CallbackID, "error", err)
	}

	data := u.CallbackData
	switch {
	case data == cbStartRegister:
		return b.startRegistration(ctx, u.ChatID, user)
	case data == cbStartAddFood:
		b.send(ctx, u.ChatID, addFoodText, nil)
	case data == cbStartStats:
		if _, ok, err := b.profile(ctx, u.ChatID, user); err != nil || !ok {
			return err
		}
		b.send(ctx, u.ChatID, "📊 Выберите период для статистики:", statsButtons())
	case strings.HasPrefix(data, cbRegister):
		return b.registrationInput(ctx, u.ChatID, user, strings.TrimPrefix(data, cbRegister))
	case strings.HasPrefix(data, cbStats):
		return b.sendStats(ctx, u.ChatID, u.MessageID, user, strings.TrimPrefix(data, cbStats))
	case strings.HasPrefix(data, cbEditAction):
		if strings.TrimPrefix(data, cbEditAction) == session.ActionBack && b.editor.Cancel(user.ID) {
			b.send(ctx, u.ChatID, "↩️ Изменение отменено.", nil)
		}
	case strings.HasPrefix(data, cbEdit):
		id, ok := parseRecordID(data, cbEdit)
		if !ok {
			return nil
		}
		reply, err := b.editor.Start(user.ID, id)
		if errors.Is(err, service.ErrNotFound) {
			b.send(ctx, u.ChatID, msgNotFound, nil)
			return nil
		}
		if err != nil {
			return err
		}
		b.send(ctx, u.ChatID, reply.Text, optionRows(cbEditAction, reply.Options))
	case strings.HasPrefix(data, cbDelete):
		id, ok := parseRecordID(data, cbDelete)
		if !ok {
			return nil
		}
		return b.deleteRecord(ctx, u.ChatID, user, id)
	default:
		b.logger.Debug("Unknown callback", "data", data, "user", user.ID)
	}
	return nil
}

func (b *Bot) deleteRecord(ctx context.Context, chatID int64, user model.User, id int64) error {
	rec, err := service.GetFoodLog(b.db, id)
	if err == nil && rec.UserID != user.ID {
		err = service.ErrNotFound
	}
	if err == nil {
		err = service.DeleteFoodLog(b.db, user.ID, id)
	}
	if errors.Is(err, service.ErrNotFound) {
		b.send(ctx, chatID, msgNotFound, nil)
		return nil
	}
	if err != nil {
		return err
	}
	b.events.FoodDeleted(rec)
	b.send(ctx, chatID, "🗑️ Запись удалена: "+rec.FoodName, nil)
	return nil
}

func parseRecordID(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
