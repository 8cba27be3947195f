package db

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		sql: `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  platform_id INTEGER NOT NULL UNIQUE,
  username TEXT,
  first_name TEXT,
  last_name TEXT,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS profiles (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL UNIQUE,
  gender TEXT NOT NULL CHECK(gender IN ('male', 'female')),
  age INTEGER NOT NULL CHECK(age >= 10 AND age <= 100),
  height_cm INTEGER NOT NULL CHECK(height_cm >= 100 AND height_cm <= 250),
  current_weight_kg REAL NOT NULL CHECK(current_weight_kg >= 30 AND current_weight_kg <= 200),
  target_weight_kg REAL CHECK(target_weight_kg IS NULL OR (target_weight_kg >= 30 AND target_weight_kg <= 200)),
  goal TEXT NOT NULL CHECK(goal IN ('lose', 'maintain', 'gain')),
  activity_level TEXT NOT NULL CHECK(activity_level IN ('low', 'moderate', 'high')),
  daily_calories INTEGER NOT NULL CHECK(daily_calories >= 0),
  daily_protein INTEGER NOT NULL CHECK(daily_protein >= 0),
  daily_fat INTEGER NOT NULL CHECK(daily_fat >= 0),
  daily_carbs INTEGER NOT NULL CHECK(daily_carbs >= 0),
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS food_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  food_name TEXT NOT NULL,
  grams INTEGER NOT NULL DEFAULT 100,
  calories INTEGER NOT NULL CHECK(calories >= 0),
  protein_g REAL NOT NULL DEFAULT 0 CHECK(protein_g >= 0),
  fat_g REAL NOT NULL DEFAULT 0 CHECK(fat_g >= 0),
  carbs_g REAL NOT NULL DEFAULT 0 CHECK(carbs_g >= 0),
  fiber_g REAL NOT NULL DEFAULT 0 CHECK(fiber_g >= 0),
  source TEXT NOT NULL DEFAULT 'text',
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_food_logs_user_created_at ON food_logs(user_id, created_at);
`,
	},
	{
		version: 2,
		name:    "food_cache",
		sql: `
CREATE TABLE IF NOT EXISTS food_cache (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name_norm TEXT NOT NULL,
  calories REAL NOT NULL CHECK(calories >= 0),
  protein_g REAL NOT NULL DEFAULT 0,
  fat_g REAL NOT NULL DEFAULT 0,
  carbs_g REAL NOT NULL DEFAULT 0,
  fiber_g REAL NOT NULL DEFAULT 0,
  source TEXT NOT NULL,
  external_id TEXT,
  usage_count INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_food_cache_name_norm ON food_cache(name_norm);
`,
	},
	{
		version: 3,
		name:    "ai_usage_logs",
		sql: `
CREATE TABLE IF NOT EXISTS ai_usage_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER,
  request_id TEXT NOT NULL,
  request_type TEXT NOT NULL,
  model TEXT NOT NULL,
  cost_usd REAL NOT NULL DEFAULT 0 CHECK(cost_usd >= 0),
  tokens_input INTEGER NOT NULL DEFAULT 0,
  tokens_output INTEGER NOT NULL DEFAULT 0,
  food_name TEXT,
  error TEXT,
  created_at DATETIME NOT NULL,
  FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_ai_usage_logs_created_at ON ai_usage_logs(created_at);
`,
	},
	{
		version: 4,
		name:    "weight_logs",
		sql: `
CREATE TABLE IF NOT EXISTS weight_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  weight_kg REAL NOT NULL CHECK(weight_kg > 0),
  note TEXT,
  created_at DATETIME NOT NULL,
  FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_weight_logs_user_created_at ON weight_logs(user_id, created_at);
`,
	},
	{
		version: 5,
		name:    "app_config",
		sql: `
CREATE TABLE IF NOT EXISTS app_config (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
	},
}

var defaultConfig = map[string]string{
	"usd_rub_rate":     "92",
	"primary_provider": "fatsecret",
}

func ApplyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow(`SELECT 1 FROM schema_migrations WHERE version = ?`, m.version).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration version %d: %w", m.version, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration tx: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration version %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version, name) VALUES(?, ?)`, m.version, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration version %d: %w", m.version, err)
		}
	}

	for key, value := range defaultConfig {
		if _, err := db.Exec(`INSERT OR IGNORE INTO app_config(key, value) VALUES(?, ?)`, key, value); err != nil {
			return fmt.Errorf("seed default config %s: %w", key, err)
		}
	}

	return nil
}
