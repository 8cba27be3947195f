package usda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://api.nal.usda.gov"
	kilojoulesPerKcal = 4.184
)

// ErrNotFound reports a successful search that matched nothing usable.
var ErrNotFound = errors.New("usda: no matching food")

// FoodLookup holds nutrients per 100 g. Foundation, SR Legacy and survey foods
// in FoodData Central are always reported on that basis.
type FoodLookup struct {
	FDCID       int64   `json:"fdc_id"`
	Description string  `json:"description"`
	Calories    float64 `json:"calories"`
	ProteinG    float64 `json:"protein_g"`
	CarbsG      float64 `json:"carbs_g"`
	FatG        float64 `json:"fat_g"`
	FiberG      float64 `json:"fiber_g"`
}

type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c *Client) SearchFoods(ctx context.Context, query string, limit int) ([]FoodLookup, []byte, error) {
	if !c.Configured() {
		return nil, nil, fmt.Errorf("missing USDA API key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if limit <= 0 {
		limit = 5
	}

	reqBody := map[string]any{
		"query":    strings.TrimSpace(query),
		"dataType": []string{"Foundation", "SR Legacy", "Survey (FNDDS)"},
		"pageSize": limit,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal USDA search payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/fdc/v1/foods/search?api_key=%s", baseURL, url.QueryEscape(c.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("create USDA request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("execute USDA request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read USDA response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, body, fmt.Errorf("USDA request failed with status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, body, fmt.Errorf("decode USDA response: %w", err)
	}

	out := make([]FoodLookup, 0, len(parsed.Foods))
	for _, food := range parsed.Foods {
		item, ok := toFoodLookup(food)
		if !ok {
			continue
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil, body, fmt.Errorf("no USDA food found for query %q: %w", query, ErrNotFound)
	}
	return out, body, nil
}

func toFoodLookup(food usdaFood) (FoodLookup, bool) {
	out := FoodLookup{
		FDCID:       food.FDCID,
		Description: strings.TrimSpace(food.Description),
	}
	haveEnergy := false
	for _, n := range food.FoodNutrients {
		name := strings.ToLower(strings.TrimSpace(n.NutrientName))
		unit := strings.ToLower(strings.TrimSpace(n.UnitName))
		switch name {
		case "energy", "energy (atwater general factors)":
			switch unit {
			case "kj":
				if !haveEnergy {
					out.Calories = n.Value / kilojoulesPerKcal
					haveEnergy = true
				}
			default:
				out.Calories = n.Value
				haveEnergy = true
			}
		case "protein":
			out.ProteinG = n.Value
		case "carbohydrate, by difference":
			out.CarbsG = n.Value
		case "total lipid (fat)":
			out.FatG = n.Value
		case "fiber, total dietary":
			out.FiberG = n.Value
		}
	}
	return out, haveEnergy
}

type searchResponse struct {
	Foods []usdaFood `json:"foods"`
}

type usdaFood struct {
	FDCID         int64          `json:"fdcId"`
	Description   string         `json:"description"`
	DataType      string         `json:"dataType"`
	FoodNutrients []usdaNutrient `json:"foodNutrients"`
}

type usdaNutrient struct {
	NutrientName string  `json:"nutrientName"`
	UnitName     string  `json:"unitName"`
	Value        float64 `json:"value"`
}
