package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamly-app/roamly/internal/app/models"
)

const validResponse = `{
  "title": "A Day in Lisbon",
  "mood": "Chill",
  "tags": ["lisbon", "relaxed"],
  "items": [
    {"time": "9:00 AM", "activity": "Pastel de nata breakfast", "location_name": "Manteigaria", "description": "Warm custard tarts", "category": "Food", "rating": 4.8, "review_count": 2100, "price": "$"},
    {"time": "11:00 AM", "activity": "Tram 28 ride", "location_name": "Tram 28", "description": "Classic yellow tram through Alfama", "category": "Activity", "rating": 4.5, "review_count": 900, "price": "$"}
  ]
}`

func TestParseItinerary_ValidJSON(t *testing.T) {
	p, err := parseItinerary(validResponse)
	require.NoError(t, err)

	assert.Equal(t, "A Day in Lisbon", p.Title)
	assert.Equal(t, "Chill", p.Mood)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "Manteigaria", p.Items[0].LocationName)
	assert.Equal(t, models.CategoryFood, p.Items[0].Category)
}

func TestParseItinerary_StripsMarkdownFences(t *testing.T) {
	fenced := "```json\n" + validResponse + "\n```"
	p, err := parseItinerary(fenced)
	require.NoError(t, err)
	assert.Equal(t, "A Day in Lisbon", p.Title)
}

func TestParseItinerary_RepairsTrailingCommas(t *testing.T) {
	broken := `{
      "title": "Broken",
      "tags": ["a", "b",],
      "items": [
        {"time": "9:00 AM", "activity": "Walk", "location_name": "Park", "category": "Activity",},
      ],
    }`
	p, err := parseItinerary(broken)
	require.NoError(t, err)
	assert.Equal(t, "Broken", p.Title)
	require.Len(t, p.Items, 1)
}

func TestParseItinerary_NormalizesCategories(t *testing.T) {
	tests := []struct {
		in   string
		want models.ItemCategory
	}{
		{"restaurant", models.CategoryFood},
		{"CAFE", models.CategoryFood},
		{"bar", models.CategoryNightlife},
		{"museum", models.CategoryActivity},
		{"", models.CategoryActivity},
		{"shopping", models.ItemCategory("Shopping")},
	}
	for _, tt := range tests {
		got := normalizeCategory(models.ItemCategory(tt.in))
		assert.Equal(t, tt.want, got, "category %q", tt.in)
	}
}

func TestParseItinerary_RejectsEmptyAndNonJSON(t *testing.T) {
	_, err := parseItinerary("")
	assert.Error(t, err)

	_, err = parseItinerary("Sorry, I can't help with that.")
	assert.Error(t, err)

	_, err = parseItinerary(`{"title": "No stops", "items": []}`)
	assert.Error(t, err)
}
