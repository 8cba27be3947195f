package openfoodfacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://world.openfoodfacts.org"
	defaultUserAgent  = "diet-bot/2.0 (+https://github.com/dmitriyy0828-web/diet-bot-v2)"
	kilojoulesPerKcal = 4.184
)

// ErrNotFound reports a successful search that matched nothing usable.
var ErrNotFound = errors.New("openfoodfacts: no matching food")

// FoodLookup holds nutrients per 100 g.
type FoodLookup struct {
	Code        string
	Description string
	Brand       string
	Calories    float64
	ProteinG    float64
	CarbsG      float64
	FatG        float64
	FiberG      float64
}

type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

func (c *Client) SearchFoods(ctx context.Context, query string, limit int) ([]FoodLookup, []byte, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	userAgent := strings.TrimSpace(c.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if limit <= 0 {
		limit = 1
	}
	u := fmt.Sprintf("%s/cgi/search.pl?search_terms=%s&search_simple=1&action=process&json=1&page_size=%d",
		base,
		url.QueryEscape(strings.TrimSpace(query)),
		limit,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create openfoodfacts search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("execute openfoodfacts search request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read openfoodfacts search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, body, fmt.Errorf("openfoodfacts search request failed with status %d", resp.StatusCode)
	}
	var parsed offSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, body, fmt.Errorf("decode openfoodfacts search response: %w", err)
	}

	out := make([]FoodLookup, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		calories, ok := energyKcal(p.Nutriments)
		if !ok {
			continue
		}
		out = append(out, FoodLookup{
			Code:        strings.TrimSpace(p.Code),
			Description: strings.TrimSpace(p.ProductName),
			Brand:       strings.TrimSpace(p.Brands),
			Calories:    calories,
			ProteinG:    nutrientValue(p.Nutriments, "proteins"),
			CarbsG:      nutrientValue(p.Nutriments, "carbohydrates"),
			FatG:        nutrientValue(p.Nutriments, "fat"),
			FiberG:      nutrientValue(p.Nutriments, "fiber"),
		})
	}
	if len(out) == 0 {
		return nil, body, fmt.Errorf("no openfoodfacts product found for query %q: %w", query, ErrNotFound)
	}
	return out, body, nil
}

type offSearchResponse struct {
	Products []offProduct `json:"products"`
}

type offProduct struct {
	Code        string         `json:"code"`
	ProductName string         `json:"product_name"`
	Brands      string         `json:"brands"`
	Nutriments  map[string]any `json:"nutriments"`
}

// energyKcal prefers the kcal fields and converts the kJ energy field otherwise.
func energyKcal(n map[string]any) (float64, bool) {
	for _, key := range []string{"energy-kcal_100g", "energy-kcal"} {
		if v, ok := parseFloatAny(n[key]); ok && v > 0 {
			return v, true
		}
	}
	for _, key := range []string{"energy-kj_100g", "energy_100g"} {
		if v, ok := parseFloatAny(n[key]); ok && v > 0 {
			return v / kilojoulesPerKcal, true
		}
	}
	return 0, false
}

func nutrientValue(n map[string]any, base string) float64 {
	for _, key := range []string{base + "_100g", base} {
		if v, ok := parseFloatAny(n[key]); ok {
			return v
		}
	}
	return 0
}

func parseFloatAny(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", "."), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
