package db_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/db"
)

func TestApplyMigrationsIdempotentAndSeedsDefaults(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "diet_bot.db")
	sqldb, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer sqldb.Close()

	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("first apply migrations: %v", err)
	}
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("second apply migrations: %v", err)
	}

	var migrationCount int
	if err := sqldb.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&migrationCount); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if migrationCount != 5 {
		t.Fatalf("expected 5 migration versions, got %d", migrationCount)
	}

	for _, table := range []string{"users", "profiles", "food_logs", "food_cache", "ai_usage_logs", "weight_logs", "app_config"} {
		var count int
		if err := sqldb.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count); err != nil {
			t.Fatalf("check %s table: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("expected %s table to exist", table)
		}
	}

	var fiberColCount int
	if err := sqldb.QueryRow(`SELECT COUNT(1) FROM pragma_table_info('food_logs') WHERE name = 'fiber_g'`).Scan(&fiberColCount); err != nil {
		t.Fatalf("check food_logs fiber_g column: %v", err)
	}
	if fiberColCount != 1 {
		t.Fatalf("expected fiber_g column in food_logs table")
	}

	var rate string
	if err := sqldb.QueryRow(`SELECT value FROM app_config WHERE key = 'usd_rub_rate'`).Scan(&rate); err != nil {
		t.Fatalf("read seeded usd_rub_rate: %v", err)
	}
	if rate != "92" {
		t.Fatalf("expected seeded usd_rub_rate 92, got %q", rate)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db file to exist: %v", err)
	}
}

func TestFoodCacheAllowsDuplicateNames(t *testing.T) {
	t.Parallel()

	sqldb, err := db.Open(filepath.Join(t.TempDir(), "diet_bot.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer sqldb.Close()
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := sqldb.Exec(`INSERT INTO food_cache(name_norm, calories, source) VALUES('рис', 130, 'fatsecret')`); err != nil {
			t.Fatalf("insert cache row %d: %v", i+1, err)
		}
	}
}
