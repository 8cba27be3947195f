package llm

import "strings"

// Price is the USD cost of a single token.
type Price struct {
	Input  float64
	Output float64
}

var fallbackPrices = map[string]Price{
	"gpt-4o":        {Input: 0.000005, Output: 0.000015},
	"gpt-4o-mini":   {Input: 0.00000015, Output: 0.0000006},
	"gemma-2-9b-it": {Input: 0.00000003, Output: 0.00000006},
}

var unknownModelPrice = Price{Input: 0.000001, Output: 0.000003}

// PriceFor returns the per-token fallback price for a model id. Vendor
// prefixes such as "openai/" are ignored.
func PriceFor(model string) Price {
	name := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if p, ok := fallbackPrices[name]; ok {
		return p
	}
	return unknownModelPrice
}

// EstimateCost prices a call from its token counts.
func EstimateCost(model string, in, out int) float64 {
	p := PriceFor(model)
	return float64(in)*p.Input + float64(out)*p.Output
}
