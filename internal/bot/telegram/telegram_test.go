package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/bot"
)

type apiCall struct {
	method string
	form   map[string]string
}

func newTestClient(t *testing.T) (*Client, func() []apiCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []apiCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		form := map[string]string{}
		for k := range r.Form {
			form[k] = r.Form.Get(k)
		}
		mu.Lock()
		calls = append(calls, apiCall{method: method, form: form})
		mu.Unlock()

		var result any = true
		switch method {
		case "getMe":
			result = map[string]any{"id": 1, "is_bot": true, "first_name": "Diet", "username": "diet_bot"}
		case "sendMessage", "sendPhoto":
			result = map[string]any{"message_id": 42, "date": 0, "chat": map[string]any{"id": 5, "type": "private"}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}))
	t.Cleanup(srv.Close)

	api, err := tgbotapi.NewBotAPIWithClient("TOKEN", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	return NewWithAPI(api, nil), func() []apiCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]apiCall(nil), calls...)
	}
}

func TestSendTextWithButtons(t *testing.T) {
	c, calls := newTestClient(t)
	assert.Equal(t, "diet_bot", c.Username())

	id, err := c.SendText(context.Background(), 5, "привет", [][]bot.Button{{{Text: "📊 Статистика", Data: "start:stats"}}})
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	got := calls()
	last := got[len(got)-1]
	assert.Equal(t, "sendMessage", last.method)
	assert.Equal(t, "5", last.form["chat_id"])
	assert.Equal(t, "привет", last.form["text"])
	assert.Contains(t, last.form["reply_markup"], `"callback_data":"start:stats"`)
}

func TestRequestMethods(t *testing.T) {
	c, calls := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.EditText(ctx, 5, 42, "обновлено", nil))
	require.NoError(t, c.Delete(ctx, 5, 42))
	require.NoError(t, c.AnswerCallback(ctx, "cb1", ""))
	require.NoError(t, c.SetCommands())

	var methods []string
	for _, call := range calls() {
		methods = append(methods, call.method)
	}
	assert.Equal(t, []string{"getMe", "editMessageText", "deleteMessage", "answerCallbackQuery", "setMyCommands"}, methods)
}

func TestConvert(t *testing.T) {
	from := &tgbotapi.User{ID: 77, UserName: "anna", FirstName: "Аня"}
	chat := &tgbotapi.Chat{ID: 77}

	u, ok := convert(tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{MessageID: 3, From: from, Chat: chat, Text: "гречка 200г"}})
	require.True(t, ok)
	assert.Equal(t, bot.KindText, u.Kind())
	assert.Equal(t, int64(77), u.ChatID)
	assert.Equal(t, "anna", u.Sender.Username)

	u, ok = convert(tgbotapi.Update{UpdateID: 2, Message: &tgbotapi.Message{From: from, Chat: chat, Caption: "обед", Photo: []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90}, {FileID: "large", Width: 1280},
	}}})
	require.True(t, ok)
	assert.Equal(t, "large", u.PhotoFileID)
	assert.Equal(t, bot.KindPhoto, u.Kind())

	u, ok = convert(tgbotapi.Update{UpdateID: 3, CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb", From: from, Data: "del:9", Message: &tgbotapi.Message{MessageID: 11, Chat: chat},
	}})
	require.True(t, ok)
	assert.Equal(t, bot.KindCallback, u.Kind())
	assert.Equal(t, 11, u.MessageID)
	assert.Equal(t, "del:9", u.CallbackData)

	_, ok = convert(tgbotapi.Update{UpdateID: 4, Message: &tgbotapi.Message{From: from, Chat: chat}})
	assert.False(t, ok)
	_, ok = convert(tgbotapi.Update{UpdateID: 5})
	assert.False(t, ok)
}
