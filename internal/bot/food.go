package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/render"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/session"
)

const (
	msgAnalyzing   = "🔍 Анализирую фото..."
	msgPhotoFailed = "❌ Не удалось распознать еду на фото.\nПопробуйте отправить название текстом, например: «борщ 300г»"
	msgEditExpired = "⏰ Время на изменение истекло. Нажмите «✏️ Изменить» ещё раз."
)

func (b *Bot) handleText(ctx context.Context, u Update, user model.User) error {
	if c, ok := b.store.Active(user.ID); ok {
		if c.Kind == session.KindEdit {
			return b.editInput(ctx, u.ChatID, user, u.Text)
		}
		return b.registrationInput(ctx, u.ChatID, user, u.Text)
	}

	p, ok, err := b.profile(ctx, u.ChatID, user)
	if err != nil || !ok {
		return err
	}
	name, grams := ParseFoodText(u.Text)
	if name == "" {
		b.send(ctx, u.ChatID, addFoodText, nil)
		return nil
	}
	res := b.resolver.ResolveOrEstimate(ctx, name, grams)
	rec, err := service.CreateFoodLog(b.db, b.foodInput(user.ID, res, "text"))
	if err != nil {
		return err
	}
	b.events.FoodLogged(rec)
	return b.sendFoodResponse(ctx, u.ChatID, user, p, []nutrition.Result{res}, []model.FoodLog{rec}, nil)
}

func (b *Bot) registrationInput(ctx context.Context, chatID int64, user model.User, input string) error {
	reply, err := b.registration.Handle(user.ID, input)
	if errors.Is(err, session.ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	text := reply.Text
	if reply.Done && reply.Profile != nil {
		text += "\n\n" + ProfileText(*reply.Profile)
	}
	b.send(ctx, chatID, text, optionRows(cbRegister, reply.Options))
	return nil
}

func (b *Bot) editInput(ctx context.Context, chatID int64, user model.User, input string) error {
	c, _ := b.store.Get(user.ID, session.KindEdit)
	var origID int64
	if c != nil {
		origID = c.RecordID
	}

	reply, err := b.editor.Handle(ctx, user.ID, input)
	switch {
	case errors.Is(err, session.ErrExpired):
		b.send(ctx, chatID, msgEditExpired, nil)
		return nil
	case errors.Is(err, service.ErrNotFound):
		b.send(ctx, chatID, msgNotFound, nil)
		return nil
	case err != nil:
		return err
	}
	if reply.Record == nil {
		b.send(ctx, chatID, reply.Text, optionRows(cbEditAction, reply.Options))
		return nil
	}

	rec := *reply.Record
	if rec.ID != origID {
		b.events.FoodLogged(rec)
	}
	text := reply.Text
	if p, err := service.GetProfile(b.db, user.ID); err == nil {
		if day, err := service.TodayForUser(b.db, user.ID, b.now(), b.loc); err == nil {
			text += "\n\n" + ProgressCaption(day.Calories, p.DailyCalories)
		}
	}
	b.send(ctx, chatID, text, recordButtons(rec.ID))
	return nil
}

func (b *Bot) handlePhoto(ctx context.Context, u Update, user model.User) error {
	p, ok, err := b.profile(ctx, u.ChatID, user)
	if err != nil || !ok {
		return err
	}
	waitID, err := b.tx.SendText(ctx, u.ChatID, msgAnalyzing, nil)
	if err != nil {
		return fmt.Errorf("send wait message: %w", err)
	}

	image, err := b.tx.DownloadFile(ctx, u.PhotoFileID)
	if err != nil {
		b.logger.Warn("Photo download failed", "user", user.ID, "file", u.PhotoFileID, "error", err)
		return b.photoFailed(ctx, u.ChatID, waitID)
	}

	var (
		items    []nutrition.Result
		notFound []string
		source   = "photo"
	)
	if b.store.Detailed(user.ID) {
		est := b.vision.ExtractNutrition(ctx, image, &user.ID)
		if est.Failed || len(est.Items) == 0 {
			b.logger.Info("Photo estimate failed", "user", user.ID, "reason", est.Reason)
			return b.photoFailed(ctx, u.ChatID, waitID)
		}
		items = est.Items
		source = "photo_detailed"
	} else {
		det := b.vision.ExtractFoods(ctx, image, &user.ID)
		if det.Failed || len(det.Foods) == 0 {
			b.logger.Info("Photo detection failed", "user", user.ID, "reason", det.Reason)
			return b.photoFailed(ctx, u.ChatID, waitID)
		}
		for _, f := range det.Foods {
			res, err := b.resolver.Resolve(ctx, f.Name, f.Grams)
			if err != nil {
				if !errors.Is(err, nutrition.ErrNotFound) {
					b.logger.Warn("Photo item lookup failed", "food", f.Name, "error", err)
				}
				res = nutrition.Zero(f.Name, f.Grams)
				notFound = append(notFound, res.Name)
			}
			items = append(items, res)
		}
	}

	records := make([]model.FoodLog, 0, len(items))
	for _, it := range items {
		rec, err := service.CreateFoodLog(b.db, b.foodInput(user.ID, it, source))
		if err != nil {
			return err
		}
		b.events.FoodLogged(rec)
		records = append(records, rec)
	}
	if err := b.tx.Delete(ctx, u.ChatID, waitID); err != nil {
		b.logger.Debug("Delete wait message failed", "error", err)
	}
	return b.sendFoodResponse(ctx, u.ChatID, user, p, items, records, notFound)
}

func (b *Bot) photoFailed(ctx context.Context, chatID int64, waitID int) error {
	if err := b.tx.EditText(ctx, chatID, waitID, msgPhotoFailed, nil); err != nil {
		b.send(ctx, chatID, msgPhotoFailed, nil)
	}
	return nil
}

func (b *Bot) foodInput(userID int64, r nutrition.Result, source string) service.FoodLogInput {
	in := service.FoodLogFromResult(userID, r, source)
	in.CreatedAt = b.now()
	return in
}

// sendFoodResponse shows the logged items as a table image with the day's
// progress underneath. Text is the fallback when the image cannot be drawn.
func (b *Bot) sendFoodResponse(ctx context.Context, chatID int64, user model.User, p model.Profile, items []nutrition.Result, records []model.FoodLog, notFound []string) error {
	day, err := service.TodayForUser(b.db, user.ID, b.now(), b.loc)
	if err != nil {
		return err
	}
	caption := ProgressCaption(day.Calories, p.DailyCalories)
	if len(notFound) > 0 {
		caption += "\n⚠️ Не найдены в базе: " + strings.Join(notFound, ", ")
	}

	var total *nutrition.Result
	if len(items) > 1 {
		t := sumResults(items)
		total = &t
	}
	var buttons [][]Button
	if len(records) > 0 {
		buttons = recordButtons(records[0].ID)
	}

	png, err := render.Table(items, total)
	if err == nil {
		if _, err = b.tx.SendPhoto(ctx, chatID, png, caption, buttons); err == nil {
			return nil
		}
	}
	b.logger.Warn("Table image not sent, falling back to text", "error", err)
	b.send(ctx, chatID, FoodListText(items)+"\n\n"+caption, buttons)
	return nil
}

func sumResults(items []nutrition.Result) nutrition.Result {
	t := nutrition.Result{Name: "Итого"}
	for _, it := range items {
		t.Grams += it.Grams
		t.Calories += it.Calories
		t.ProteinG += it.ProteinG
		t.FatG += it.FatG
		t.CarbsG += it.CarbsG
		t.FiberG += it.FiberG
	}
	t.ProteinG = nutrition.Round1(t.ProteinG)
	t.FatG = nutrition.Round1(t.FatG)
	t.CarbsG = nutrition.Round1(t.CarbsG)
	t.FiberG = nutrition.Round1(t.FiberG)
	return t
}
