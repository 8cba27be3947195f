package nutrition

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/provider/fatsecret"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/provider/openfoodfacts"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/provider/usda"
)

type fatSecretClient interface {
	SearchFoods(ctx context.Context, query string, limit int) ([]fatsecret.FoodLookup, []byte, error)
}

type usdaClient interface {
	SearchFoods(ctx context.Context, query string, limit int) ([]usda.FoodLookup, []byte, error)
}

type openFoodFactsClient interface {
	SearchFoods(ctx context.Context, query string, limit int) ([]openfoodfacts.FoodLookup, []byte, error)
}

// FatSecretProvider answers from the FatSecret platform API. Its results are
// primary tier.
type FatSecretProvider struct {
	Client fatSecretClient
}

func (FatSecretProvider) Name() string { return "fatsecret" }

func (p FatSecretProvider) Search(ctx context.Context, name string) (Per100g, error) {
	items, _, err := p.Client.SearchFoods(ctx, name, 5)
	if err != nil {
		return Per100g{}, mapMiss(err, fatsecret.ErrNotFound)
	}
	f := items[0]
	return Per100g{
		Name:       f.Name,
		Calories:   f.Calories,
		ProteinG:   f.ProteinG,
		FatG:       f.FatG,
		CarbsG:     f.CarbsG,
		FiberG:     f.FiberG,
		Source:     "fatsecret",
		ExternalID: f.FoodID,
		Tier:       TierPrimary,
	}, nil
}

// USDAProvider answers from USDA FoodData Central. Its results are primary tier.
type USDAProvider struct {
	Client usdaClient
}

func (USDAProvider) Name() string { return "usda" }

func (p USDAProvider) Search(ctx context.Context, name string) (Per100g, error) {
	items, _, err := p.Client.SearchFoods(ctx, name, 5)
	if err != nil {
		return Per100g{}, mapMiss(err, usda.ErrNotFound)
	}
	f := items[0]
	return Per100g{
		Name:       f.Description,
		Calories:   f.Calories,
		ProteinG:   f.ProteinG,
		FatG:       f.FatG,
		CarbsG:     f.CarbsG,
		FiberG:     f.FiberG,
		Source:     "usda",
		ExternalID: strconv.FormatInt(f.FDCID, 10),
		Tier:       TierPrimary,
	}, nil
}

// OpenFoodFactsProvider is the keyless fallback. Its results are never cached.
type OpenFoodFactsProvider struct {
	Client openFoodFactsClient
}

func (OpenFoodFactsProvider) Name() string { return "openfoodfacts" }

func (p OpenFoodFactsProvider) Search(ctx context.Context, name string) (Per100g, error) {
	items, _, err := p.Client.SearchFoods(ctx, name, 1)
	if err != nil {
		return Per100g{}, mapMiss(err, openfoodfacts.ErrNotFound)
	}
	f := items[0]
	return Per100g{
		Name:       f.Description,
		Calories:   f.Calories,
		ProteinG:   f.ProteinG,
		FatG:       f.FatG,
		CarbsG:     f.CarbsG,
		FiberG:     f.FiberG,
		Source:     "openfoodfacts",
		ExternalID: f.Code,
		Tier:       TierSecondary,
	}, nil
}

func mapMiss(err, providerMiss error) error {
	if errors.Is(err, providerMiss) {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	return err
}
