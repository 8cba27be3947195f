package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
)

// FoodCache is the SQLite-backed first layer of the nutrition chain and the
// store primary lookups are written to. Rows are never evicted. Two rows for
// the same name may exist after concurrent misses; either answers correctly.
type FoodCache struct {
	DB *sql.DB
}

func (FoodCache) Name() string { return "cache" }

func (c FoodCache) Search(ctx context.Context, name string) (nutrition.Per100g, error) {
	key := nutrition.NormalizeName(name)
	if key == "" {
		return nutrition.Per100g{}, nutrition.ErrNotFound
	}
	var e model.FoodCacheEntry
	var externalID sql.NullString
	err := c.DB.QueryRowContext(ctx, `
SELECT id, name_norm, calories, protein_g, fat_g, carbs_g, fiber_g, source, external_id
FROM food_cache
WHERE name_norm = ?
ORDER BY usage_count DESC, id ASC
LIMIT 1
`, key).Scan(&e.ID, &e.NameNorm, &e.Calories, &e.ProteinG, &e.FatG, &e.CarbsG, &e.FiberG, &e.Source, &externalID)
	if err == sql.ErrNoRows {
		return nutrition.Per100g{}, nutrition.ErrNotFound
	}
	if err != nil {
		return nutrition.Per100g{}, fmt.Errorf("lookup food cache %q: %w", key, err)
	}
	if _, err := c.DB.ExecContext(ctx, `UPDATE food_cache SET usage_count = usage_count + 1 WHERE id = ?`, e.ID); err != nil {
		return nutrition.Per100g{}, fmt.Errorf("bump food cache usage %d: %w", e.ID, err)
	}
	return nutrition.Per100g{
		Name:       e.NameNorm,
		Calories:   e.Calories,
		ProteinG:   e.ProteinG,
		FatG:       e.FatG,
		CarbsG:     e.CarbsG,
		FiberG:     e.FiberG,
		Source:     e.Source,
		ExternalID: externalID.String,
		Tier:       nutrition.TierCache,
	}, nil
}

func (c FoodCache) Store(ctx context.Context, name string, n nutrition.Per100g) error {
	key := nutrition.NormalizeName(name)
	if key == "" {
		return fmt.Errorf("food name is required")
	}
	var externalID any
	if n.ExternalID != "" {
		externalID = n.ExternalID
	}
	_, err := c.DB.ExecContext(ctx, `
INSERT INTO food_cache(name_norm, calories, protein_g, fat_g, carbs_g, fiber_g, source, external_id)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
`, key, n.Calories, n.ProteinG, n.FatG, n.CarbsG, n.FiberG, n.Source, externalID)
	if err != nil {
		return fmt.Errorf("insert food cache %q: %w", key, err)
	}
	return nil
}

// CacheUsage reports the hit counter of the most used row for name.
func CacheUsage(db *sql.DB, name string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT IFNULL(MAX(usage_count), 0) FROM food_cache WHERE name_norm = ?`, nutrition.NormalizeName(name)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("read food cache usage: %w", err)
	}
	return n, nil
}
