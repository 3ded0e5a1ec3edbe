package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roamly-app/roamly/internal/app/models"
)

// plan is the wire shape the AI is asked to produce.
type plan struct {
	Title string                 `json:"title"`
	Mood  string                 `json:"mood"`
	Tags  []string               `json:"tags"`
	Items []models.ItineraryItem `json:"items"`
}

var titleCaser = cases.Title(language.English)

// parseItinerary cleans markdown fences, repairs malformed JSON and
// normalizes the result. Providers routinely wrap output in ```json fences
// or emit trailing commas despite being told not to.
func parseItinerary(raw string) (plan, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return plan{}, fmt.Errorf("empty response")
	}

	var p plan
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(cleaned)
		if repairErr != nil {
			return plan{}, fmt.Errorf("response is not valid JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &p); err != nil {
			return plan{}, fmt.Errorf("repaired response is still not valid JSON: %w", err)
		}
	}

	if len(p.Items) == 0 {
		return plan{}, fmt.Errorf("response contains no itinerary items")
	}
	for i := range p.Items {
		p.Items[i].Category = normalizeCategory(p.Items[i].Category)
		p.Items[i].Activity = strings.TrimSpace(p.Items[i].Activity)
		p.Items[i].LocationName = strings.TrimSpace(p.Items[i].LocationName)
	}
	return p, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// normalizeCategory maps free-text categories onto the canonical set.
// Unknown values are title-cased and kept.
func normalizeCategory(c models.ItemCategory) models.ItemCategory {
	switch strings.ToLower(strings.TrimSpace(string(c))) {
	case "food", "restaurant", "dining", "cafe", "coffee", "brunch", "lunch", "dinner", "breakfast":
		return models.CategoryFood
	case "nightlife", "bar", "club", "drinks", "party":
		return models.CategoryNightlife
	case "activity", "sightseeing", "culture", "museum", "outdoors", "attraction", "":
		return models.CategoryActivity
	default:
		return models.ItemCategory(titleCaser.String(strings.TrimSpace(string(c))))
	}
}
