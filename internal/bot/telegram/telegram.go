// Package telegram adapts the Telegram Bot API to bot.Transport and turns
// long-polled updates into bot.Update values.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/bot"
)

const maxDownloadBytes = 20 << 20

// Commands is the menu registered with Telegram on startup.
var Commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Начать"},
	{Command: "today", Description: "Статистика за сегодня"},
	{Command: "stats", Description: "Статистика за период"},
	{Command: "profile", Description: "Мой профиль"},
	{Command: "weight", Description: "Записать вес"},
	{Command: "register", Description: "Заполнить профиль"},
	{Command: "photo_detailed", Description: "Подробный режим фото"},
	{Command: "cancel", Description: "Отменить действие"},
	{Command: "help", Description: "Помощь"},
}

type Client struct {
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

func New(token string, logger *slog.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	return NewWithAPI(api, logger), nil
}

func NewWithAPI(api *tgbotapi.BotAPI, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, logger: logger}
}

func (c *Client) Username() string { return c.api.Self.UserName }

func (c *Client) SetCommands() error {
	if _, err := c.api.Request(tgbotapi.NewSetMyCommands(Commands...)); err != nil {
		return fmt.Errorf("set bot commands: %w", err)
	}
	return nil
}

func (c *Client) SendText(_ context.Context, chatID int64, text string, buttons [][]bot.Button) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb := keyboard(buttons); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (c *Client) SendPhoto(_ context.Context, chatID int64, png []byte, caption string, buttons [][]bot.Button) (int, error) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "food.png", Bytes: png})
	photo.Caption = caption
	if kb := keyboard(buttons); kb != nil {
		photo.ReplyMarkup = *kb
	}
	sent, err := c.api.Send(photo)
	if err != nil {
		return 0, fmt.Errorf("send photo to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (c *Client) EditText(_ context.Context, chatID int64, messageID int, text string, buttons [][]bot.Button) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ReplyMarkup = keyboard(buttons)
	if _, err := c.api.Request(edit); err != nil {
		return fmt.Errorf("edit message %d: %w", messageID, err)
	}
	return nil
}

func (c *Client) Delete(_ context.Context, chatID int64, messageID int) error {
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	return nil
}

func (c *Client) AnswerCallback(_ context.Context, callbackID, text string) error {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback %s: %w", callbackID, err)
	}
	return nil
}

func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file %s: %w", fileID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build file request: %w", err)
	}
	resp, err := c.api.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file %s: status %d", fileID, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}
	return data, nil
}

// Updates long-polls Telegram until ctx is done. The returned channel is
// closed when polling stops.
func (c *Client) Updates(ctx context.Context, pollTimeout int) <-chan bot.Update {
	out := make(chan bot.Update)
	go func() {
		defer close(out)
		cfg := tgbotapi.NewUpdate(0)
		cfg.Timeout = pollTimeout
		for ctx.Err() == nil {
			batch, err := c.api.GetUpdates(cfg)
			if err != nil {
				c.logger.Warn("Poll updates failed", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(3 * time.Second):
				}
				continue
			}
			for _, raw := range batch {
				if raw.UpdateID >= cfg.Offset {
					cfg.Offset = raw.UpdateID + 1
				}
				u, ok := convert(raw)
				if !ok {
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// convert keeps text messages, photos and button presses. For a photo the
// largest size is used.
func convert(raw tgbotapi.Update) (bot.Update, bool) {
	switch {
	case raw.CallbackQuery != nil:
		q := raw.CallbackQuery
		u := bot.Update{ID: raw.UpdateID, Sender: sender(q.From), CallbackID: q.ID, CallbackData: q.Data}
		if q.Message != nil {
			u.MessageID = q.Message.MessageID
			if q.Message.Chat != nil {
				u.ChatID = q.Message.Chat.ID
			}
		}
		if u.ChatID == 0 {
			u.ChatID = u.Sender.ID
		}
		return u, true
	case raw.Message != nil:
		m := raw.Message
		if m.Chat == nil || m.From == nil {
			return bot.Update{}, false
		}
		u := bot.Update{ID: raw.UpdateID, Sender: sender(m.From), ChatID: m.Chat.ID, MessageID: m.MessageID, Text: m.Text}
		if len(m.Photo) > 0 {
			u.PhotoFileID = m.Photo[len(m.Photo)-1].FileID
			u.Text = m.Caption
		}
		if u.Text == "" && u.PhotoFileID == "" {
			return bot.Update{}, false
		}
		return u, true
	}
	return bot.Update{}, false
}

func sender(u *tgbotapi.User) bot.Sender {
	if u == nil {
		return bot.Sender{}
	}
	return bot.Sender{ID: u.ID, Username: u.UserName, FirstName: u.FirstName, LastName: u.LastName}
}

func keyboard(rows [][]bot.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, buttons)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}
