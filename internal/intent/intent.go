// Package intent interprets free-form edit requests for a logged food entry.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/llm"
)

type Kind int

const (
	NeedsClarification Kind = iota
	ChangeWeight
	ChangeCalories
	ChangeProduct
	// Unrecognized is a well-formed reply that still cannot be acted on, such
	// as a product change without the new product.
	Unrecognized
)

func (k Kind) String() string {
	switch k {
	case ChangeWeight:
		return "change_grams"
	case ChangeCalories:
		return "change_calories"
	case ChangeProduct:
		return "change_product"
	case Unrecognized:
		return "unrecognized"
	default:
		return "unclear"
	}
}

type Intent struct {
	Kind Kind
	// Value is grams for ChangeWeight and kcal for ChangeCalories.
	Value      int
	Target     string
	NewProduct string
}

type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

type ModelConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func DefaultModel() ModelConfig {
	return ModelConfig{Model: "google/gemma-2-9b-it", MaxTokens: 200, Temperature: 0.1, Timeout: 10 * time.Second}
}

type Interpreter struct {
	client Completer
	model  ModelConfig
	logger *slog.Logger
}

type Option func(*Interpreter)

func WithModel(m ModelConfig) Option {
	return func(in *Interpreter) { in.model = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) {
		if l != nil {
			in.logger = l
		}
	}
}

func New(client Completer, opts ...Option) *Interpreter {
	in := &Interpreter{client: client, model: DefaultModel(), logger: slog.Default()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

type reply struct {
	Action     string `json:"action"`
	Value      any    `json:"value"`
	Target     any    `json:"target"`
	NewProduct any    `json:"new_product"`
}

// Interpret classifies text against the names of the user's entries. It never
// fails: a model error or an unparseable reply is NeedsClarification.
func (in *Interpreter) Interpret(ctx context.Context, text string, candidates []string, userID *int64) Intent {
	text = strings.TrimSpace(text)
	if text == "" {
		return Intent{Kind: NeedsClarification}
	}

	system := editPrompt
	if len(candidates) > 0 {
		system += "\nПродукты в записи: " + strings.Join(candidates, ", ")
	}
	resp, err := in.client.Complete(ctx, llm.Request{
		Type:        llm.TypeEdit,
		Model:       in.model.Model,
		MaxTokens:   in.model.MaxTokens,
		Temperature: in.model.Temperature,
		Timeout:     in.model.Timeout,
		UserID:      userID,
		Messages: []llm.Message{
			{Role: "system", Text: system},
			{Role: "user", Text: strconv.Quote(text)},
		},
	})
	if err != nil {
		in.logger.Warn("Edit interpretation failed", "error", err)
		return Intent{Kind: NeedsClarification}
	}

	var r reply
	if err := llm.DecodeObject(resp.Content, &r); err != nil {
		in.logger.Warn("Edit reply not parseable", "error", err, "reply", resp.Content)
		return Intent{Kind: NeedsClarification}
	}
	return fromReply(r, text)
}

func fromReply(r reply, text string) Intent {
	out := Intent{Target: asString(r.Target)}
	switch strings.TrimSpace(strings.ToLower(r.Action)) {
	case "change_grams":
		out.Kind = ChangeWeight
	case "change_calories":
		out.Kind = ChangeCalories
	case "change_product":
		out.Kind = ChangeProduct
		out.NewProduct = asString(r.NewProduct)
		if out.NewProduct == "" {
			return Intent{Kind: Unrecognized}
		}
		return out
	default:
		return Intent{Kind: NeedsClarification}
	}

	v, ok := asNumber(r.Value)
	if !ok {
		v, ok = ParseNumber(text)
	}
	if !ok || v <= 0 {
		return Intent{Kind: NeedsClarification}
	}
	out.Value = v
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
			return ""
		}
		return s
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func asNumber(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return int(t + 0.5), true
		}
	case string:
		return ParseNumber(t)
	}
	return 0, false
}
