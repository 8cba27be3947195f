package usda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchFoodsParsesUSDAResponse(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "demo" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload["query"] != "rice" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "foods": [
    {
      "fdcId": 168878,
      "description": "Rice, white, cooked",
      "dataType": "SR Legacy",
      "foodNutrients": [
        {"nutrientName": "Energy", "unitName": "kJ", "value": 544},
        {"nutrientName": "Energy", "unitName": "KCAL", "value": 130},
        {"nutrientName": "Protein", "unitName": "G", "value": 2.69},
        {"nutrientName": "Carbohydrate, by difference", "unitName": "G", "value": 28.17},
        {"nutrientName": "Total lipid (fat)", "unitName": "G", "value": 0.28},
        {"nutrientName": "Fiber, total dietary", "unitName": "G", "value": 0.4}
      ]
    },
    {"fdcId": 1, "description": "No energy", "foodNutrients": []}
  ]
}`))
	}))
	defer ts.Close()

	c := &Client{
		APIKey:     "demo",
		BaseURL:    ts.URL,
		HTTPClient: ts.Client(),
	}

	items, _, err := c.SearchFoods(context.Background(), "rice", 5)
	if err != nil {
		t.Fatalf("search foods: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected foods without energy to be skipped, got %d", len(items))
	}
	item := items[0]
	if item.FDCID != 168878 {
		t.Fatalf("expected fdc id 168878, got %d", item.FDCID)
	}
	if item.Calories != 130 || item.ProteinG != 2.69 || item.CarbsG != 28.17 || item.FatG != 0.28 || item.FiberG != 0.4 {
		t.Fatalf("unexpected nutrients: %+v", item)
	}
}

func TestSearchFoodsRequiresAPIKey(t *testing.T) {
	t.Parallel()

	c := &Client{}
	if _, _, err := c.SearchFoods(context.Background(), "rice", 5); err == nil {
		t.Fatalf("expected missing api key error")
	}
}
