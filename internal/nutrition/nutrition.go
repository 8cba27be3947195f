// Package nutrition resolves food names to nutrient values through an ordered
// chain of lookup providers and scales per-100g values to a portion weight.
package nutrition

import (
	"context"
	"errors"
	"math"
	"strings"
)

// DefaultGrams is used whenever a portion weight is missing or not positive.
const DefaultGrams = 100

var ErrNotFound = errors.New("food not found")

// Tier tells how much a lookup result is trusted. Only primary results are
// persisted to the cache.
type Tier int

const (
	TierCache Tier = iota
	TierPrimary
	TierSecondary
	TierBuiltin
)

func (t Tier) String() string {
	switch t {
	case TierCache:
		return "cache"
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

type Per100g struct {
	Name       string
	Calories   float64
	ProteinG   float64
	FatG       float64
	CarbsG     float64
	FiberG     float64
	Source     string
	ExternalID string
	Tier       Tier
}

type Result struct {
	Name     string  `json:"name"`
	Grams    int     `json:"grams"`
	Calories int     `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	FatG     float64 `json:"fat_g"`
	CarbsG   float64 `json:"carbs_g"`
	FiberG   float64 `json:"fiber_g"`
	Source   string  `json:"source"`
	Tier     Tier    `json:"-"`
}

// Provider is one layer of the lookup chain. Search returns ErrNotFound (or an
// error wrapping it) on a clean miss; any other error is a provider failure.
type Provider interface {
	Name() string
	Search(ctx context.Context, name string) (Per100g, error)
}

// Store persists trusted lookups for later cache hits.
type Store interface {
	Store(ctx context.Context, name string, n Per100g) error
}

func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Scale converts per-100g values to a portion of grams.
func Scale(n Per100g, grams int) Result {
	if grams <= 0 {
		grams = DefaultGrams
	}
	ratio := float64(grams) / 100
	return Result{
		Name:     n.Name,
		Grams:    grams,
		Calories: int(math.Round(n.Calories * ratio)),
		ProteinG: Round1(n.ProteinG * ratio),
		FatG:     Round1(n.FatG * ratio),
		CarbsG:   Round1(n.CarbsG * ratio),
		FiberG:   Round1(n.FiberG * ratio),
		Source:   n.Source,
		Tier:     n.Tier,
	}
}

// Rescaled moves a portion to a new weight by the ratio grams/r.Grams.
// A stored weight that is not positive counts as DefaultGrams.
func (r Result) Rescaled(grams int) Result {
	prev := r.Grams
	if prev <= 0 {
		prev = DefaultGrams
	}
	if grams <= 0 {
		grams = DefaultGrams
	}
	ratio := float64(grams) / float64(prev)
	out := r
	out.Grams = grams
	out.Calories = int(math.Round(float64(r.Calories) * ratio))
	out.ProteinG = Round1(r.ProteinG * ratio)
	out.FatG = Round1(r.FatG * ratio)
	out.CarbsG = Round1(r.CarbsG * ratio)
	out.FiberG = Round1(r.FiberG * ratio)
	return out
}

// Zero is the placeholder recorded for a detected food that no provider knows.
func Zero(name string, grams int) Result {
	if grams <= 0 {
		grams = DefaultGrams
	}
	return Result{Name: strings.TrimSpace(name), Grams: grams, Source: "not_found"}
}
