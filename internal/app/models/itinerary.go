package models

import (
	"time"

	"github.com/google/uuid"
)

// Personality is the travel-style preference attached to a user profile.
type Personality string

const (
	PersonalityAdventurous Personality = "Adventurous"
	PersonalityChill       Personality = "Chill"
	PersonalityFoodie      Personality = "Foodie"
	PersonalityCultural    Personality = "Cultural"
	PersonalityParty       Personality = "Party"
)

// ItemCategory classifies a stop. Free text from the AI provider is
// normalized into one of these where possible but unknown values are kept.
type ItemCategory string

const (
	CategoryFood      ItemCategory = "Food"
	CategoryActivity  ItemCategory = "Activity"
	CategoryNightlife ItemCategory = "Nightlife"
)

// UserProfile is the current user's identity plus locally-stored preferences.
// Name and email come from the identity provider; city and personality are
// preference fields persisted through the sync engine.
type UserProfile struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	City        string      `json:"city,omitempty"`
	Personality Personality `json:"personality,omitempty"`
	Role        string      `json:"role,omitempty"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
}

// UserReview is a review attached to a single itinerary item.
type UserReview struct {
	Rating       int    `json:"rating"`
	Text         string `json:"text"`
	Date         string `json:"date"`
	PostedToYelp bool   `json:"posted_to_yelp"`
}

// ItineraryItem is one stop of an itinerary. LocationName is the natural key
// into the shared place catalog; the remaining place fields (category,
// rating, review count, price, image, verified) are carried along and
// upserted into the catalog on every save.
type ItineraryItem struct {
	Time         string       `json:"time"`
	Activity     string       `json:"activity"`
	LocationName string       `json:"location_name"`
	Description  string       `json:"description"`
	Verified     bool         `json:"verified"`
	Category     ItemCategory `json:"category"`
	Rating       float64      `json:"rating"`
	ReviewCount  int          `json:"review_count"`
	Price        string       `json:"price"`
	ImageURL     string       `json:"image_url"`
	Completed    bool         `json:"completed"`
	UserReview   *UserReview  `json:"user_review,omitempty"`
}

// Itinerary is a named, dated, ordered plan. Item order is semantically
// meaningful and must round-trip exactly through persistence.
type Itinerary struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Date              string          `json:"date"`
	Mood              string          `json:"mood"`
	Tags              []string        `json:"tags"`
	Items             []ItineraryItem `json:"items"`
	Author            string          `json:"author,omitempty"`
	Likes             int             `json:"likes"`
	Shared            bool            `json:"shared"`
	Bookmarked        bool            `json:"bookmarked"`
	VerifiedCommunity bool            `json:"verified_community"`
	Featured          bool            `json:"featured"`
}

// EnsureUUID returns the itinerary id if it already is a valid UUID, or a
// freshly generated one. Client-generated ids must be coerced before any
// remote write.
func (i *Itinerary) EnsureUUID() string {
	if _, err := uuid.Parse(i.ID); err != nil {
		return uuid.New().String()
	}
	return i.ID
}

// Remix clones an itinerary under a new id with sharing state reset, so the
// copy starts as a private plan owned by whoever remixed it.
func (i Itinerary) Remix() Itinerary {
	out := i
	out.ID = uuid.New().String()
	out.Shared = false
	out.Bookmarked = false
	out.VerifiedCommunity = false
	out.Featured = false
	out.Likes = 0
	out.Items = make([]ItineraryItem, len(i.Items))
	copy(out.Items, i.Items)
	out.Tags = append([]string(nil), i.Tags...)
	return out
}

// Place is a row of the deduplicated place catalog, keyed by name.
type Place struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	Price       string    `json:"price"`
	ImageURL    string    `json:"image_url"`
	Verified    bool      `json:"verified"`
}

// PrivacySettings are remote-only account options; saving them has no local
// durable leg, so failures surface to the caller.
type PrivacySettings struct {
	PublicProfile  bool `json:"public_profile"`
	ShowCity       bool `json:"show_city"`
	AllowRemixes   bool `json:"allow_remixes"`
	EmailUpdatesOK bool `json:"email_updates_ok"`
}
