package nutrition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/provider/fatsecret"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/provider/openfoodfacts"
)

type fakeProvider struct {
	name  string
	calls int
	res   Per100g
	err   error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(_ context.Context, _ string) (Per100g, error) {
	f.calls++
	if f.err != nil {
		return Per100g{}, f.err
	}
	return f.res, nil
}

// memoryCache acts as both the cache provider and the store, counting hits.
type memoryCache struct {
	mu    sync.Mutex
	rows  map[string]Per100g
	usage map[string]int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{rows: map[string]Per100g{}, usage: map[string]int{}}
}

func (m *memoryCache) Name() string { return "cache" }

func (m *memoryCache) Search(_ context.Context, name string) (Per100g, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeName(name)
	n, ok := m.rows[key]
	if !ok {
		return Per100g{}, ErrNotFound
	}
	m.usage[key]++
	n.Tier = TierCache
	return n, nil
}

func (m *memoryCache) Store(_ context.Context, name string, n Per100g) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[NormalizeName(name)] = n
	return nil
}

func TestScale(t *testing.T) {
	n := Per100g{Calories: 130, ProteinG: 2.7, FatG: 0.3, CarbsG: 28, FiberG: 0.4}

	tests := []struct {
		name     string
		grams    int
		calories int
		protein  float64
		carbs    float64
	}{
		{name: "reference", grams: 100, calories: 130, protein: 2.7, carbs: 28},
		{name: "double", grams: 200, calories: 260, protein: 5.4, carbs: 56},
		{name: "odd weight", grams: 155, calories: 202, protein: 4.2, carbs: 43.4},
		{name: "zero defaults to 100", grams: 0, calories: 130, protein: 2.7, carbs: 28},
		{name: "negative defaults to 100", grams: -5, calories: 130, protein: 2.7, carbs: 28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scale(n, tt.grams)
			assert.Equal(t, tt.calories, got.Calories)
			assert.InDelta(t, tt.protein, got.ProteinG, 1e-9)
			assert.InDelta(t, tt.carbs, got.CarbsG, 1e-9)
			assert.Positive(t, got.Grams)
		})
	}
}

func TestRescaled(t *testing.T) {
	r := Result{Name: "рис", Grams: 200, Calories: 300, ProteinG: 5.4, FatG: 0.6, CarbsG: 56}
	got := r.Rescaled(100)
	assert.Equal(t, 100, got.Grams)
	assert.Equal(t, 150, got.Calories)
	assert.InDelta(t, 2.7, got.ProteinG, 1e-9)
	assert.InDelta(t, 28.0, got.CarbsG, 1e-9)

	zero := Result{Name: "рис", Grams: 0, Calories: 130}
	got = zero.Rescaled(50)
	assert.Equal(t, 50, got.Grams)
	assert.Equal(t, 65, got.Calories)
}

func TestResolverCacheIdempotence(t *testing.T) {
	cache := newMemoryCache()
	primary := &fakeProvider{name: "fatsecret", res: Per100g{Name: "Rice", Calories: 130, ProteinG: 2.7, FatG: 0.3, CarbsG: 28, Source: "fatsecret", Tier: TierPrimary}}
	r := NewResolver([]Provider{cache, primary}, WithStore(cache))

	first, err := r.Resolve(context.Background(), "Рис", 100)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "Рис", 100)
	require.NoError(t, err)

	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, first.Calories, second.Calories)
	assert.Equal(t, first.ProteinG, second.ProteinG)
	assert.Equal(t, 1, cache.usage["рис"])
	assert.Equal(t, TierCache, second.Tier)
}

func TestResolverSecondaryNotPersisted(t *testing.T) {
	cache := newMemoryCache()
	primary := &fakeProvider{name: "fatsecret", err: errors.New("boom")}
	secondary := &fakeProvider{name: "openfoodfacts", res: Per100g{Calories: 52, Tier: TierSecondary, Source: "openfoodfacts"}}

	var outcomes []string
	r := NewResolver([]Provider{cache, primary, secondary}, WithStore(cache), WithObserver(func(p, o string) {
		outcomes = append(outcomes, p+":"+o)
	}))

	res, err := r.Resolve(context.Background(), "яблоко", 200)
	require.NoError(t, err)
	assert.Equal(t, 104, res.Calories)
	assert.Equal(t, "яблоко", res.Name)
	assert.Empty(t, cache.rows)
	assert.Equal(t, []string{"cache:miss", "fatsecret:error", "openfoodfacts:hit"}, outcomes)
}

func TestResolverNotFound(t *testing.T) {
	r := NewResolver([]Provider{
		&fakeProvider{name: "fatsecret", err: fmt.Errorf("nothing: %w", ErrNotFound)},
		nil,
		&fakeProvider{name: "openfoodfacts", err: errors.New("status 503")},
	})
	assert.Equal(t, []string{"fatsecret", "openfoodfacts"}, r.Providers())

	_, err := r.Resolve(context.Background(), "драконий фрукт", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(context.Background(), "   ", 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveOrEstimate(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		food     string
		grams    int
		calories int
		source   string
	}{
		{food: "Гречка отварная", grams: 200, calories: 264, source: "builtin"},
		{food: "курица", grams: 150, calories: 248, source: "builtin"},
		{food: "пицца", grams: 250, calories: 250, source: "default"},
		{food: "хлеб", grams: 0, calories: 265, source: "builtin"},
	}
	for _, tt := range tests {
		t.Run(tt.food, func(t *testing.T) {
			got := r.ResolveOrEstimate(context.Background(), tt.food, tt.grams)
			assert.Equal(t, tt.calories, got.Calories)
			assert.Equal(t, tt.source, got.Source)
			assert.Equal(t, TierBuiltin, got.Tier)
		})
	}
}

type stubFatSecret struct {
	items []fatsecret.FoodLookup
	err   error
}

func (s stubFatSecret) SearchFoods(context.Context, string, int) ([]fatsecret.FoodLookup, []byte, error) {
	return s.items, nil, s.err
}

type stubOFF struct {
	err error
}

func (s stubOFF) SearchFoods(context.Context, string, int) ([]openfoodfacts.FoodLookup, []byte, error) {
	return nil, nil, s.err
}

func TestProviderAdapters(t *testing.T) {
	fs := FatSecretProvider{Client: stubFatSecret{items: []fatsecret.FoodLookup{{FoodID: "42", Name: "Rice", Calories: 130}}}}
	n, err := fs.Search(context.Background(), "rice")
	require.NoError(t, err)
	assert.Equal(t, TierPrimary, n.Tier)
	assert.Equal(t, "42", n.ExternalID)

	miss := FatSecretProvider{Client: stubFatSecret{err: fmt.Errorf("none: %w", fatsecret.ErrNotFound)}}
	_, err = miss.Search(context.Background(), "rice")
	assert.ErrorIs(t, err, ErrNotFound)

	broken := OpenFoodFactsProvider{Client: stubOFF{err: errors.New("status 500")}}
	_, err = broken.Search(context.Background(), "rice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
