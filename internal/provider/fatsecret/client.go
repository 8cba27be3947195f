package fatsecret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultBaseURL    = "https://platform.fatsecret.com/rest/server.api"
	defaultTokenURL   = "https://oauth.fatsecret.com/connect/token"
	defaultRegion     = "RU"
	kilojoulesPerKcal = 4.184
)

// ErrNotFound reports a successful search that matched nothing usable.
var ErrNotFound = errors.New("fatsecret: no matching food")

// FoodLookup holds nutrients per 100 g (or 100 ml) as reported by FatSecret.
type FoodLookup struct {
	FoodID   string
	Name     string
	Brand    string
	Calories float64
	ProteinG float64
	CarbsG   float64
	FatG     float64
	FiberG   float64
}

type Client struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	Region       string
	HTTPClient   *http.Client

	once   sync.Once
	tokens oauth2.TokenSource
}

func (c *Client) Configured() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// SearchFoods runs foods.search and returns the results described per 100 g.
// Results quoted per serving are dropped since they cannot be scaled by weight.
func (c *Client) SearchFoods(ctx context.Context, query string, limit int) ([]FoodLookup, []byte, error) {
	if !c.Configured() {
		return nil, nil, fmt.Errorf("missing FatSecret client credentials")
	}
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	region := strings.TrimSpace(c.Region)
	if region == "" {
		region = defaultRegion
	}
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("method", "foods.search")
	params.Set("search_expression", strings.TrimSpace(query))
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("format", "json")
	params.Set("region", region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create fatsecret search request: %w", err)
	}
	resp, err := c.authorizedClient(ctx).Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("execute fatsecret search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read fatsecret search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, body, fmt.Errorf("fatsecret search request failed with status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, body, fmt.Errorf("decode fatsecret search response: %w", err)
	}
	if parsed.Error != nil {
		return nil, body, fmt.Errorf("fatsecret error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	out := make([]FoodLookup, 0, len(parsed.Foods.Food))
	for _, f := range parsed.Foods.Food {
		nutrients, ok := ParseDescription(f.Description)
		if !ok {
			continue
		}
		nutrients.FoodID = strings.TrimSpace(f.ID)
		nutrients.Name = strings.TrimSpace(f.Name)
		nutrients.Brand = strings.TrimSpace(f.Brand)
		out = append(out, nutrients)
	}
	if len(out) == 0 {
		return nil, body, fmt.Errorf("no fatsecret food found for query %q: %w", query, ErrNotFound)
	}
	return out, body, nil
}

func (c *Client) authorizedClient(ctx context.Context) *http.Client {
	c.once.Do(func() {
		tokenURL := strings.TrimSpace(c.TokenURL)
		if tokenURL == "" {
			tokenURL = defaultTokenURL
		}
		cfg := clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{"basic"},
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		// The token source outlives this request, so it must not inherit its deadline.
		c.tokens = cfg.TokenSource(context.WithValue(context.Background(), oauth2.HTTPClient, c.baseHTTPClient()))
	})
	return oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.baseHTTPClient()), c.tokens)
}

func (c *Client) baseHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

var numberPattern = regexp.MustCompile(`[\d]+(?:[.,]\d+)?`)

// ParseDescription reads the food_description summary, for example
// "Per 100g - Calories: 52kcal | Fat: 0.17g | Carbs: 13.81g | Protein: 0.26g".
// ok is false when the basis is not 100 g / 100 ml or no energy value is present.
func ParseDescription(description string) (FoodLookup, bool) {
	description = strings.TrimSpace(description)
	basis, rest, found := strings.Cut(description, " - ")
	if !found {
		return FoodLookup{}, false
	}
	basis = strings.ToLower(strings.ReplaceAll(basis, " ", ""))
	switch basis {
	case "per100g", "per100ml", "на100г", "на100мл":
	default:
		return FoodLookup{}, false
	}

	var out FoodLookup
	haveEnergy := false
	for _, part := range strings.FieldsFunc(rest, func(r rune) bool { return r == '|' }) {
		label, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		label = strings.ToLower(strings.TrimSpace(label))
		value = strings.ToLower(strings.TrimSpace(value))
		num, ok := extractNumber(value)
		if !ok {
			continue
		}
		switch {
		case label == "calories" || label == "energy" || label == "калории" || label == "энергия":
			if strings.HasSuffix(value, "kj") || strings.HasSuffix(value, "кдж") {
				num /= kilojoulesPerKcal
			}
			out.Calories = num
			haveEnergy = true
		case label == "fat" || label == "жиры":
			out.FatG = num
		case strings.HasPrefix(label, "carb") || strings.HasPrefix(label, "углев"):
			out.CarbsG = num
		case label == "protein" || label == "белки":
			out.ProteinG = num
		case label == "fiber" || label == "fibre" || label == "клетчатка":
			out.FiberG = num
		}
	}
	return out, haveEnergy
}

func extractNumber(s string) (float64, bool) {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
