// Package config loads bot settings from defaults, an optional YAML file,
// a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no --config is given.
const DefaultFile = "diet-bot.yaml"

type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Models     ModelsConfig     `yaml:"models"`
	Nutrition  NutritionConfig  `yaml:"nutrition"`
	Database   DatabaseConfig   `yaml:"database"`
	Stats      StatsConfig      `yaml:"stats"`
	Session    SessionConfig    `yaml:"session"`
	NATS       NATSConfig       `yaml:"nats"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type TelegramConfig struct {
	// Token comes from BOT_TOKEN.
	Token    string  `yaml:"token"`
	AdminIDs []int64 `yaml:"admin_ids"`
	// Workers is the number of per-user serialized update handlers.
	Workers     int `yaml:"workers"`
	PollTimeout int `yaml:"poll_timeout"`
}

type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Referer string `yaml:"referer"`
	Title   string `yaml:"title"`
}

type ModelConfig struct {
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ModelsConfig struct {
	Vision         ModelConfig `yaml:"vision"`
	VisionDetailed ModelConfig `yaml:"vision_detailed"`
	Edit           ModelConfig `yaml:"edit"`
}

type NutritionConfig struct {
	// Timeout bounds each external provider call.
	Timeout               time.Duration `yaml:"timeout"`
	FatSecretClientID     string        `yaml:"fatsecret_client_id"`
	FatSecretClientSecret string        `yaml:"fatsecret_client_secret"`
	USDAAPIKey            string        `yaml:"usda_api_key"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type StatsConfig struct {
	UTCOffsetHours int `yaml:"utc_offset_hours"`
}

type SessionConfig struct {
	EditTimeout time.Duration `yaml:"edit_timeout"`
}

type NATSConfig struct {
	// URL empty disables event publishing.
	URL string `yaml:"url"`
}

type MetricsConfig struct {
	// Addr empty disables the /metrics listener.
	Addr string `yaml:"addr"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Telegram: TelegramConfig{
			Workers:     8,
			PollTimeout: 60,
		},
		OpenRouter: OpenRouterConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Referer: "https://diet-bot.local",
			Title:   "Diet Bot",
		},
		Models: ModelsConfig{
			Vision:         ModelConfig{Model: "openai/gpt-4o-mini", MaxTokens: 500, Temperature: 0.3, Timeout: 30 * time.Second},
			VisionDetailed: ModelConfig{Model: "openai/gpt-4o", MaxTokens: 1000, Temperature: 0.3, Timeout: 30 * time.Second},
			Edit:           ModelConfig{Model: "google/gemma-2-9b-it", MaxTokens: 200, Temperature: 0.1, Timeout: 10 * time.Second},
		},
		Nutrition: NutritionConfig{Timeout: 10 * time.Second},
		Stats:     StatsConfig{UTCOffsetHours: 3},
		Session:   SessionConfig{EditTimeout: 300 * time.Second},
	}
}

// Load builds the configuration. A missing file at path is only an error
// when required is set; a missing .env is never one.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			if required || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a YAML file over the current values; keys missing from
// the file keep what they had.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides values from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("BOT_TOKEN", &c.Telegram.Token)
	str("OPENROUTER_API_KEY", &c.OpenRouter.APIKey)
	str("DATABASE_PATH", &c.Database.Path)
	str("FATSECRET_CLIENT_ID", &c.Nutrition.FatSecretClientID)
	str("FATSECRET_CLIENT_SECRET", &c.Nutrition.FatSecretClientSecret)
	str("USDA_API_KEY", &c.Nutrition.USDAAPIKey)
	str("NATS_URL", &c.NATS.URL)
	str("METRICS_ADDR", &c.Metrics.Addr)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("ADMIN_ID"); ok && strings.TrimSpace(v) != "" {
		ids, err := ParseAdminIDs(v)
		if err != nil {
			return err
		}
		c.Telegram.AdminIDs = ids
	}
	return nil
}

// ParseAdminIDs reads a comma separated list of chat user ids.
func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Validate checks what the bot server needs to start.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.OpenRouter.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if c.Telegram.Workers <= 0 {
		return fmt.Errorf("telegram.workers must be > 0")
	}
	if c.Stats.UTCOffsetHours < -12 || c.Stats.UTCOffsetHours > 14 {
		return fmt.Errorf("stats.utc_offset_hours must be between -12 and 14")
	}
	if c.Session.EditTimeout <= 0 {
		return fmt.Errorf("session.edit_timeout must be > 0")
	}
	for name, m := range map[string]ModelConfig{
		"vision":          c.Models.Vision,
		"vision_detailed": c.Models.VisionDetailed,
		"edit":            c.Models.Edit,
	} {
		if m.Model == "" {
			return fmt.Errorf("models.%s.model is required", name)
		}
		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("models.%s.temperature must be between 0 and 2", name)
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
