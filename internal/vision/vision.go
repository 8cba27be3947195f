// Package vision turns a food photo into detected items by asking a
// vision-capable model. Failures are returned as values, never as errors.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/llm"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
)

type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

type ModelConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func DefaultDetectModel() ModelConfig {
	return ModelConfig{Model: "openai/gpt-4o-mini", MaxTokens: 500, Temperature: 0.3, Timeout: 30 * time.Second}
}

func DefaultEstimateModel() ModelConfig {
	return ModelConfig{Model: "openai/gpt-4o", MaxTokens: 1000, Temperature: 0.3, Timeout: 30 * time.Second}
}

type Extractor struct {
	client   Completer
	detect   ModelConfig
	estimate ModelConfig
	logger   *slog.Logger
}

type Option func(*Extractor)

func WithDetectModel(m ModelConfig) Option {
	return func(e *Extractor) { e.detect = m }
}

func WithEstimateModel(m ModelConfig) Option {
	return func(e *Extractor) { e.estimate = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(client Completer, opts ...Option) *Extractor {
	e := &Extractor{
		client:   client,
		detect:   DefaultDetectModel(),
		estimate: DefaultEstimateModel(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DetectedFood is one item found on a photo, without nutrition.
type DetectedFood struct {
	Name  string
	Grams int
}

// Detection is the result of the lightweight mode. Failed is set when the
// model could not be reached or its reply could not be parsed; an empty Foods
// list with Failed unset means the model saw no food.
type Detection struct {
	Foods  []DetectedFood
	Failed bool
	Reason string
}

// Estimate is the result of the heavyweight mode: nutrition comes straight
// from the model, scaled to the estimated portion.
type Estimate struct {
	Items      []nutrition.Result
	MixedDish  bool
	Confidence string
	Failed     bool
	Reason     string
}

// ExtractFoods asks the lightweight model for (name, grams) pairs.
func (e *Extractor) ExtractFoods(ctx context.Context, image []byte, userID *int64) Detection {
	content, err := e.ask(ctx, e.detect, llm.TypeVision, detectPrompt, image, userID)
	if err != nil {
		e.logger.Warn("Vision detection failed", "error", err)
		return Detection{Failed: true, Reason: err.Error()}
	}

	raw, err := llm.DecodeArray[detectedItem](content)
	if err != nil {
		e.logger.Warn("Vision detection reply not parseable", "error", err)
		return Detection{Failed: true, Reason: err.Error()}
	}

	out := Detection{Foods: make([]DetectedFood, 0, len(raw))}
	for _, item := range raw {
		name := strings.TrimSpace(item.Food)
		if name == "" {
			name = strings.TrimSpace(item.Name)
		}
		if name == "" {
			continue
		}
		grams := item.Weight.rounded()
		if grams <= 0 {
			grams = item.Grams.rounded()
		}
		if grams <= 0 {
			grams = nutrition.DefaultGrams
		}
		out.Foods = append(out.Foods, DetectedFood{Name: name, Grams: grams})
	}
	e.logger.Debug("Vision detected foods", "count", len(out.Foods))
	return out
}

// ExtractNutrition asks the heavyweight model for full nutrition estimates.
func (e *Extractor) ExtractNutrition(ctx context.Context, image []byte, userID *int64) Estimate {
	content, err := e.ask(ctx, e.estimate, llm.TypeVisionDetailed, estimatePrompt, image, userID)
	if err != nil {
		e.logger.Warn("Vision estimate failed", "error", err)
		return Estimate{Failed: true, Reason: err.Error(), Confidence: "low"}
	}

	var reply estimateReply
	if err := llm.DecodeObject(content, &reply); err != nil {
		e.logger.Warn("Vision estimate reply not parseable", "error", err)
		return Estimate{Failed: true, Reason: err.Error(), Confidence: "low"}
	}

	out := Estimate{MixedDish: reply.MixedDish, Confidence: strings.TrimSpace(reply.Confidence)}
	if out.Confidence == "" {
		out.Confidence = "medium"
	}
	for _, f := range reply.Foods {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			name = "Неизвестный продукт"
		}
		per100 := nutrition.Per100g{
			Name:     name,
			Calories: f.Calories.value(),
			ProteinG: f.Protein.value(),
			FatG:     f.Fat.value(),
			CarbsG:   f.Carbs.value(),
			FiberG:   f.Fiber.value(),
			Source:   "ai_vision",
		}
		out.Items = append(out.Items, nutrition.Scale(per100, f.Grams.rounded()))
	}
	return out
}

func (e *Extractor) ask(ctx context.Context, m ModelConfig, reqType, prompt string, image []byte, userID *int64) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}
	resp, err := e.client.Complete(ctx, llm.Request{
		Type:        reqType,
		Model:       m.Model,
		MaxTokens:   m.MaxTokens,
		Temperature: m.Temperature,
		Timeout:     m.Timeout,
		UserID:      userID,
		FoodName:    "photo",
		Messages: []llm.Message{
			{Role: "system", Text: prompt},
			{Role: "user", Image: image, ImageMIME: "image/jpeg"},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

type detectedItem struct {
	Food   string     `json:"food"`
	Name   string     `json:"name"`
	Weight flexNumber `json:"weight"`
	Grams  flexNumber `json:"grams"`
}

type estimateReply struct {
	MixedDish  bool   `json:"is_mixed_dish"`
	Confidence string `json:"confidence"`
	Foods      []struct {
		Name     string     `json:"name"`
		Grams    flexNumber `json:"grams"`
		Calories flexNumber `json:"calories_per_100g"`
		Protein  flexNumber `json:"protein_per_100g"`
		Fat      flexNumber `json:"fat_per_100g"`
		Carbs    flexNumber `json:"carbs_per_100g"`
		Fiber    flexNumber `json:"fiber_per_100g"`
	} `json:"foods"`
}

// flexNumber accepts 150, 150.5, "150" and "150 г".
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*n = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.ReplaceAll(str, ",", "."))
		end := 0
		for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
			end++
		}
		s = s[:end]
		if s == "" {
			*n = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*n = flexNumber(v)
	return nil
}

func (n flexNumber) value() float64 { return float64(n) }

func (n flexNumber) rounded() int { return int(math.Round(float64(n))) }
