package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/llm"
)

type fakeCompleter struct {
	content string
	err     error
	last    llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		reply string
		err   error
		want  Intent
	}{
		{
			name:  "grams",
			text:  "150 граммов",
			reply: `{"action": "change_grams", "value": 150, "target": null}`,
			want:  Intent{Kind: ChangeWeight, Value: 150},
		},
		{
			name:  "calories with target",
			text:  "гречка 300 ккал",
			reply: "```json\n{\"action\": \"change_calories\", \"value\": \"300\", \"target\": \"гречка\"}\n```",
			want:  Intent{Kind: ChangeCalories, Value: 300, Target: "гречка"},
		},
		{
			name:  "spelled number recovered locally",
			text:  "сто пятьдесят грамм",
			reply: `{"action": "change_grams", "value": null}`,
			want:  Intent{Kind: ChangeWeight, Value: 150},
		},
		{
			name:  "no number anywhere",
			text:  "поменяй вес",
			reply: `{"action": "change_grams", "value": null}`,
			want:  Intent{Kind: NeedsClarification},
		},
		{
			name:  "product change",
			text:  "хочу рис вместо гречки",
			reply: `{"action": "change_product", "target": "гречка", "new_product": "рис"}`,
			want:  Intent{Kind: ChangeProduct, Target: "гречка", NewProduct: "рис"},
		},
		{
			name:  "product change without product",
			text:  "замени",
			reply: `{"action": "change_product", "new_product": null}`,
			want:  Intent{Kind: Unrecognized},
		},
		{
			name:  "unknown action",
			text:  "удали всё",
			reply: `{"action": "delete"}`,
			want:  Intent{Kind: NeedsClarification},
		},
		{
			name:  "unparseable reply",
			text:  "200 г",
			reply: "Не понимаю запрос",
			want:  Intent{Kind: NeedsClarification},
		},
		{
			name: "model unavailable",
			text: "200 г",
			err:  errors.New("timeout"),
			want: Intent{Kind: NeedsClarification},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompleter{content: tt.reply, err: tt.err}
			got := New(fc).Interpret(context.Background(), tt.text, []string{"гречка", "котлета"}, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpretRequest(t *testing.T) {
	fc := &fakeCompleter{content: `{"action":"unclear"}`}
	New(fc).Interpret(context.Background(), "второе 100 г", []string{"гречка", "котлета"}, nil)

	assert.Equal(t, llm.TypeEdit, fc.last.Type)
	assert.Equal(t, "google/gemma-2-9b-it", fc.last.Model)
	assert.Equal(t, 200, fc.last.MaxTokens)
	assert.InDelta(t, 0.1, fc.last.Temperature, 1e-9)
	require.Len(t, fc.last.Messages, 2)
	assert.True(t, strings.HasSuffix(fc.last.Messages[0].Text, "Продукты в записи: гречка, котлета"))
	assert.Equal(t, `"второе 100 г"`, fc.last.Messages[1].Text)
}

func TestInterpretEmptyText(t *testing.T) {
	fc := &fakeCompleter{}
	got := New(fc).Interpret(context.Background(), "   ", nil, nil)
	assert.Equal(t, NeedsClarification, got.Kind)
	assert.Empty(t, fc.last.Model)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{text: "150", want: 150, ok: true},
		{text: "сделай 250 г", want: 250, ok: true},
		{text: "сто пятьдесят", want: 150, ok: true},
		{text: "двести двадцать пять грамм", want: 225, ok: true},
		{text: "Триста", want: 300, ok: true},
		{text: "тысяча двести", want: 1200, ok: true},
		{text: "девятнадцать", want: 19, ok: true},
		{text: "ноль", want: 0, ok: false},
		{text: "много", want: 0, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseNumber(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTarget(t *testing.T) {
	candidates := []string{"Гречка", "котлета куриная", "огурец свежий"}

	tests := []struct {
		target string
		want   int
		ok     bool
	}{
		{target: "гречка", want: 0, ok: true},
		{target: "котлета", want: 1, ok: true},
		{target: "гречки", want: 0, ok: true},
		{target: "второе", want: 1, ok: true},
		{target: "третий", want: 2, ok: true},
		{target: "последнее", want: 2, ok: true},
		{target: "пятое", want: 0, ok: false},
		{target: "суп", want: 0, ok: false},
		{target: "", want: 0, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, ok := ResolveTarget(tt.target, candidates)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
