package nutrition

import (
	"context"
	"strings"
)

var builtinFoods = map[string]Per100g{
	"курица":  {Calories: 165, ProteinG: 31, FatG: 3.6, CarbsG: 0, FiberG: 0},
	"рис":     {Calories: 130, ProteinG: 2.7, FatG: 0.3, CarbsG: 28, FiberG: 0.4},
	"гречка":  {Calories: 132, ProteinG: 4.5, FatG: 1.6, CarbsG: 24, FiberG: 10},
	"овсянка": {Calories: 68, ProteinG: 2.4, FatG: 1.4, CarbsG: 12, FiberG: 1.7},
	"яйцо":    {Calories: 155, ProteinG: 13, FatG: 11, CarbsG: 1, FiberG: 0},
	"яблоко":  {Calories: 52, ProteinG: 0.3, FatG: 0.2, CarbsG: 14, FiberG: 2.4},
	"банан":   {Calories: 89, ProteinG: 1.1, FatG: 0.3, CarbsG: 23, FiberG: 2.6},
	"творог":  {Calories: 159, ProteinG: 18, FatG: 5, CarbsG: 3, FiberG: 0},
	"кефир":   {Calories: 51, ProteinG: 3, FatG: 2.5, CarbsG: 4, FiberG: 0},
	"хлеб":    {Calories: 265, ProteinG: 9, FatG: 3.2, CarbsG: 49, FiberG: 2.7},
}

var builtinDefault = Per100g{Calories: 100, ProteinG: 5, FatG: 3, CarbsG: 15, FiberG: 0}

// BuiltinTable matches the first word of a food name against a short list of
// staples and answers with a generic default for everything else. It never misses.
type BuiltinTable struct{}

func (BuiltinTable) Name() string { return "builtin" }

func (BuiltinTable) Search(_ context.Context, name string) (Per100g, error) {
	words := strings.Fields(NormalizeName(name))
	n := builtinDefault
	n.Source = "default"
	if len(words) > 0 {
		if known, ok := builtinFoods[words[0]]; ok {
			n = known
			n.Source = "builtin"
		}
	}
	n.Name = strings.TrimSpace(name)
	n.Tier = TierBuiltin
	return n, nil
}
