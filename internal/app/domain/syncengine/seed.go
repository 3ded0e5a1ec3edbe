package syncengine

import "github.com/roamly-app/roamly/internal/app/models"

// seedItineraries is the built-in community set shown to first-run or
// offline users so the feed is never empty. Seed entries are appended after
// any locally-published snapshot and deduplicated by id.
var seedItineraries = []models.Itinerary{
	{
		ID:    "5f1c9d8a-2b6e-4f3a-8c71-0d9e4b5a6c7d",
		Title: "Lisbon Golden Hour",
		Date:  "Sat, Jun 21",
		Mood:  "chill",
		Tags:  []string{"views", "wine", "walking"},
		Items: []models.ItineraryItem{
			{Time: "17:00", Activity: "Miradouro sunset", LocationName: "Miradouro da Graça", Category: models.CategoryActivity, Rating: 4.7, ReviewCount: 2130, Price: "$", Verified: true},
			{Time: "19:30", Activity: "Petiscos and vinho verde", LocationName: "Taberna da Rua das Flores", Category: models.CategoryFood, Rating: 4.6, ReviewCount: 1890, Price: "$$", Verified: true},
			{Time: "22:00", Activity: "Fado, standing room", LocationName: "Tasca do Chico", Category: models.CategoryNightlife, Rating: 4.4, ReviewCount: 3210, Price: "$$"},
		},
		Author:            "Roamly",
		Likes:             412,
		Shared:            true,
		VerifiedCommunity: true,
		Featured:          true,
	},
	{
		ID:    "9a2e7c3b-5d1f-4e8a-b6c4-2f0a8d7e9b1c",
		Title: "Tokyo After Dark",
		Date:  "Fri, Nov 7",
		Mood:  "party",
		Tags:  []string{"izakaya", "neon", "late"},
		Items: []models.ItineraryItem{
			{Time: "18:00", Activity: "Yakitori under the tracks", LocationName: "Omoide Yokocho", Category: models.CategoryFood, Rating: 4.5, ReviewCount: 5400, Price: "$$", Verified: true},
			{Time: "21:00", Activity: "Bar hopping", LocationName: "Golden Gai", Category: models.CategoryNightlife, Rating: 4.3, ReviewCount: 7800, Price: "$$$"},
		},
		Author:            "Roamly",
		Likes:             365,
		Shared:            true,
		VerifiedCommunity: true,
	},
	{
		ID:    "c4d8b2f1-7e6a-4c5d-9f3b-8a1e0d2c4b6f",
		Title: "Mexico City Food Crawl",
		Date:  "Sun, Feb 15",
		Mood:  "foodie",
		Tags:  []string{"tacos", "markets"},
		Items: []models.ItineraryItem{
			{Time: "10:00", Activity: "Market breakfast", LocationName: "Mercado de Coyoacán", Category: models.CategoryFood, Rating: 4.6, ReviewCount: 4100, Price: "$", Verified: true},
			{Time: "14:00", Activity: "Tacos al pastor", LocationName: "El Huequito", Category: models.CategoryFood, Rating: 4.5, ReviewCount: 6200, Price: "$"},
			{Time: "17:00", Activity: "Museo stroll", LocationName: "Museo Nacional de Antropología", Category: models.CategoryActivity, Rating: 4.8, ReviewCount: 9900, Price: "$$", Verified: true},
		},
		Author:            "Roamly",
		Likes:             298,
		Shared:            true,
		VerifiedCommunity: true,
	},
}

// SeedCommunity returns a copy of the built-in community itineraries.
func SeedCommunity() []models.Itinerary {
	out := make([]models.Itinerary, len(seedItineraries))
	copy(out, seedItineraries)
	return out
}
