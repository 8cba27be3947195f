package fatsecret

import (
	"bytes"
	"encoding/json"
)

type searchResponse struct {
	Foods struct {
		Food foodList `json:"food"`
	} `json:"foods"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type food struct {
	ID          string `json:"food_id"`
	Name        string `json:"food_name"`
	Brand       string `json:"brand_name"`
	Type        string `json:"food_type"`
	Description string `json:"food_description"`
}

// foodList accepts both shapes returned by foods.search: an array when several
// foods match and a bare object when exactly one does.
type foodList []food

func (l *foodList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var many []food
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	var one food
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = foodList{one}
	return nil
}
