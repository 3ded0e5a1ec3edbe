package remote

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/roamly-app/roamly/internal/app/models"
)

// UnknownPlaceName is substituted when an item link's place join is missing,
// so one orphaned row never fails a whole fetch.
const UnknownPlaceName = "Unknown"

// ItineraryHeader is the itineraries table row for one itinerary.
type ItineraryHeader struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Title             string
	Date              string
	Mood              string
	Tags              []string
	IsPublic          bool
	Likes             int
	VerifiedCommunity bool
	Featured          bool
	Author            string
}

// ItemLink is one itinerary_items row before place-id resolution: the place
// is referenced by name and resolved to an id at write time.
type ItemLink struct {
	PlaceName   string
	Time        string
	Activity    string
	Description string
	OrderIndex  int
	Completed   bool
	UserReview  *models.UserReview
}

// Relational is the denormalized form of a nested Itinerary: one header row,
// the place catalog upserts it implies, and the item links tying them
// together.
type Relational struct {
	Header ItineraryHeader
	Places []models.Place
	Links  []ItemLink
}

// ItemRow is the flattened result of the itinerary_items ⋈ places join used
// when reading an itinerary back. Place fields are pointers because the join
// is a left join: a dangling link has no place row.
type ItemRow struct {
	Time        string
	Activity    string
	Description string
	OrderIndex  int
	Completed   bool
	UserReview  *models.UserReview

	PlaceName        *string
	PlaceCategory    *string
	PlaceRating      *float64
	PlaceReviewCount *int
	PlacePrice       *string
	PlaceImageURL    *string
	PlaceVerified    *bool
}

// ToRelational flattens a nested itinerary into its three relational parts.
// The itinerary id must already be a valid UUID; callers coerce ids before
// any remote write.
func ToRelational(userID uuid.UUID, it models.Itinerary) (Relational, error) {
	id, err := uuid.Parse(it.ID)
	if err != nil {
		return Relational{}, fmt.Errorf("itinerary id %q is not a UUID: %w", it.ID, err)
	}

	rel := Relational{
		Header: ItineraryHeader{
			ID:                id,
			UserID:            userID,
			Title:             it.Title,
			Date:              it.Date,
			Mood:              it.Mood,
			Tags:              append([]string(nil), it.Tags...),
			IsPublic:          it.Shared,
			Likes:             it.Likes,
			VerifiedCommunity: it.VerifiedCommunity,
			Featured:          it.Featured,
			Author:            it.Author,
		},
	}

	// Place upserts are keyed by name. Within one itinerary the last item
	// referencing a name wins, matching the sequential upsert order of the
	// write path.
	seen := make(map[string]int)
	for i, item := range it.Items {
		place := models.Place{
			Name:        item.LocationName,
			Category:    string(item.Category),
			Rating:      item.Rating,
			ReviewCount: item.ReviewCount,
			Price:       item.Price,
			ImageURL:    item.ImageURL,
			Verified:    item.Verified,
		}
		if idx, ok := seen[item.LocationName]; ok {
			rel.Places[idx] = place
		} else {
			seen[item.LocationName] = len(rel.Places)
			rel.Places = append(rel.Places, place)
		}

		rel.Links = append(rel.Links, ItemLink{
			PlaceName:   item.LocationName,
			Time:        item.Time,
			Activity:    item.Activity,
			Description: item.Description,
			OrderIndex:  i,
			Completed:   item.Completed,
			UserReview:  item.UserReview,
		})
	}

	return rel, nil
}

// FromRelational rebuilds the nested itinerary shape from a header row and
// the joined item rows. Items come back ordered by order_index ascending
// regardless of row order; a row with no place join yields an item with
// location "Unknown" rather than failing the fetch.
func FromRelational(header ItineraryHeader, rows []ItemRow) models.Itinerary {
	sorted := append([]ItemRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})

	items := make([]models.ItineraryItem, 0, len(sorted))
	for _, row := range sorted {
		item := models.ItineraryItem{
			Time:         row.Time,
			Activity:     row.Activity,
			Description:  row.Description,
			Completed:    row.Completed,
			UserReview:   row.UserReview,
			LocationName: UnknownPlaceName,
		}
		if row.PlaceName != nil {
			item.LocationName = *row.PlaceName
		}
		if row.PlaceCategory != nil {
			item.Category = models.ItemCategory(*row.PlaceCategory)
		}
		if row.PlaceRating != nil {
			item.Rating = *row.PlaceRating
		}
		if row.PlaceReviewCount != nil {
			item.ReviewCount = *row.PlaceReviewCount
		}
		if row.PlacePrice != nil {
			item.Price = *row.PlacePrice
		}
		if row.PlaceImageURL != nil {
			item.ImageURL = *row.PlaceImageURL
		}
		if row.PlaceVerified != nil {
			item.Verified = *row.PlaceVerified
		}
		items = append(items, item)
	}

	return models.Itinerary{
		ID:                header.ID.String(),
		Title:             header.Title,
		Date:              header.Date,
		Mood:              header.Mood,
		Tags:              header.Tags,
		Items:             items,
		Author:            header.Author,
		Likes:             header.Likes,
		Shared:            header.IsPublic,
		VerifiedCommunity: header.VerifiedCommunity,
		Featured:          header.Featured,
	}
}
