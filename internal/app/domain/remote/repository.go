// Package remote wraps the hosted relational backend. Every operation may
// fail or time out; callers treat failures as "backend absent" and fall back
// to the local store, so nothing here panics or blocks past its deadline.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/models"
	"github.com/roamly-app/roamly/internal/pkg/config"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock's pool
// interface satisfies it too, which keeps the repository testable without a
// live database.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Store = (*RepositoryImpl)(nil)

// Store defines the remote persistence contract consumed by the sync engine.
type Store interface {
	SaveItinerary(ctx context.Context, userID uuid.UUID, it models.Itinerary) error
	FetchItineraries(ctx context.Context, userID uuid.UUID) ([]models.Itinerary, error)
	FetchItinerary(ctx context.Context, id string) (*models.Itinerary, error)
	FetchCommunity(ctx context.Context, q CommunityQuery) ([]models.Itinerary, error)
	FetchProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, userID uuid.UUID, profile models.UserProfile) error
	SavePrivacySettings(ctx context.Context, userID uuid.UUID, settings models.PrivacySettings) error
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}

// CommunityQuery bounds the public feed fetch.
type CommunityQuery struct {
	Limit int
	Mood  string
}

// DefaultCommunityLimit caps the feed page size.
const DefaultCommunityLimit = 20

type RepositoryImpl struct {
	logger   *zap.Logger
	db       DB
	timeouts config.TimeoutsConfig
}

func NewRepository(db DB, timeouts config.TimeoutsConfig, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger:   logger,
		db:       db,
		timeouts: timeouts,
	}
}

// withDeadline applies the operation-class timeout unless the caller already
// set a tighter one.
func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < d {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// SaveItinerary denormalizes one nested itinerary into three writes, in an
// order that keeps referential correctness: header first, then the place
// catalog rows the items reference, then the item links. The link step is
// delete-then-recreate; a failure between delete and insert leaves the
// itinerary with zero items remotely until the next successful sync, which
// is accepted because the local cache remains the source of truth.
func (r *RepositoryImpl) SaveItinerary(ctx context.Context, userID uuid.UUID, it models.Itinerary) error {
	ctx, cancel := withDeadline(ctx, r.timeouts.RemoteWrite)
	defer cancel()

	rel, err := ToRelational(userID, it)
	if err != nil {
		return &Error{Kind: KindRejected, Op: "save itinerary", Err: err}
	}

	headerQuery := `
        INSERT INTO itineraries (
            id, user_id, title, date, mood, tags, is_public, likes_count,
            verified_community, featured, author, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
        ON CONFLICT (id) DO UPDATE SET
            title = EXCLUDED.title, date = EXCLUDED.date, mood = EXCLUDED.mood,
            tags = EXCLUDED.tags, is_public = EXCLUDED.is_public,
            likes_count = EXCLUDED.likes_count,
            verified_community = EXCLUDED.verified_community,
            featured = EXCLUDED.featured, author = EXCLUDED.author,
            updated_at = NOW()
    `
	h := rel.Header
	if _, err := r.db.Exec(ctx, headerQuery,
		h.ID, h.UserID, h.Title, h.Date, h.Mood, h.Tags, h.IsPublic, h.Likes,
		h.VerifiedCommunity, h.Featured, h.Author,
	); err != nil {
		r.logger.Error("Failed to upsert itinerary header", zap.String("id", it.ID), zap.Error(err))
		return classify("save itinerary header", err)
	}

	// Place rows are shared across itineraries and conflict-resolved by
	// name: the last itinerary saved wins on shared metadata.
	placeQuery := `
        INSERT INTO places (id, name, category, rating, review_count, price, image_url, verified)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (name) DO UPDATE SET
            category = EXCLUDED.category, rating = EXCLUDED.rating,
            review_count = EXCLUDED.review_count, price = EXCLUDED.price,
            image_url = EXCLUDED.image_url, verified = EXCLUDED.verified
    `
	for _, p := range rel.Places {
		if _, err := r.db.Exec(ctx, placeQuery,
			uuid.New(), p.Name, p.Category, p.Rating, p.ReviewCount, p.Price, p.ImageURL, p.Verified,
		); err != nil {
			r.logger.Error("Failed to upsert place", zap.String("name", p.Name), zap.Error(err))
			return classify("upsert place", err)
		}
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM itinerary_items WHERE itinerary_id = $1`, h.ID); err != nil {
		r.logger.Error("Failed to clear itinerary items", zap.String("id", it.ID), zap.Error(err))
		return classify("clear itinerary items", err)
	}

	linkQuery := `
        INSERT INTO itinerary_items (
            itinerary_id, place_id, time, activity, description, order_index, completed, user_review
        )
        SELECT $1, p.id, $3, $4, $5, $6, $7, $8
        FROM places p WHERE p.name = $2
    `
	for _, link := range rel.Links {
		var review []byte
		if link.UserReview != nil {
			review, err = json.Marshal(link.UserReview)
			if err != nil {
				return &Error{Kind: KindRejected, Op: "encode review", Err: err}
			}
		}
		if _, err := r.db.Exec(ctx, linkQuery,
			h.ID, link.PlaceName, link.Time, link.Activity, link.Description,
			link.OrderIndex, link.Completed, review,
		); err != nil {
			r.logger.Error("Failed to insert itinerary item",
				zap.String("id", it.ID),
				zap.String("place", link.PlaceName),
				zap.Error(err),
			)
			return classify("insert itinerary item", err)
		}
	}

	r.logger.Debug("Itinerary synced to remote",
		zap.String("id", it.ID),
		zap.Int("items", len(rel.Links)),
	)
	return nil
}

const headerColumns = `id, user_id, title, date, mood, tags, is_public, likes_count, verified_community, featured, author`

func scanHeader(row pgx.Row) (ItineraryHeader, error) {
	var h ItineraryHeader
	err := row.Scan(
		&h.ID, &h.UserID, &h.Title, &h.Date, &h.Mood, &h.Tags, &h.IsPublic,
		&h.Likes, &h.VerifiedCommunity, &h.Featured, &h.Author,
	)
	return h, err
}

// FetchItineraries reverses the write mapping: headers for the user, then
// the item-link ⋈ place join per itinerary, flattened back into the nested
// shape with items ordered by order_index.
func (r *RepositoryImpl) FetchItineraries(ctx context.Context, userID uuid.UUID) ([]models.Itinerary, error) {
	ctx, cancel := withDeadline(ctx, r.timeouts.RemoteRead)
	defer cancel()

	query := `
        SELECT ` + headerColumns + `
        FROM itineraries
        WHERE user_id = $1
        ORDER BY updated_at DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Warn("Failed to fetch itineraries", zap.Error(err))
		return nil, classify("fetch itineraries", err)
	}
	defer rows.Close()

	var headers []ItineraryHeader
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, classify("scan itinerary header", err)
		}
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate itinerary headers", err)
	}

	out := make([]models.Itinerary, 0, len(headers))
	for _, h := range headers {
		itemRows, err := r.fetchItemRows(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, FromRelational(h, itemRows))
	}
	return out, nil
}

// FetchItinerary loads a single itinerary by id, public or not.
func (r *RepositoryImpl) FetchItinerary(ctx context.Context, id string) (*models.Itinerary, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("itinerary id %q is not a UUID: %w", id, models.ErrBadRequest)
	}

	ctx, cancel := withDeadline(ctx, r.timeouts.RemoteRead)
	defer cancel()

	query := `SELECT ` + headerColumns + ` FROM itineraries WHERE id = $1`
	h, err := scanHeader(r.db.QueryRow(ctx, query, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("itinerary %s: %w", id, models.ErrNotFound)
		}
		r.logger.Warn("Failed to fetch itinerary", zap.String("id", id), zap.Error(err))
		return nil, classify("fetch itinerary", err)
	}

	itemRows, err := r.fetchItemRows(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	it := FromRelational(h, itemRows)
	return &it, nil
}

// FetchCommunity returns public itineraries ordered by likes descending,
// bounded to a single page.
func (r *RepositoryImpl) FetchCommunity(ctx context.Context, q CommunityQuery) ([]models.Itinerary, error) {
	ctx, cancel := withDeadline(ctx, r.timeouts.RemoteRead)
	defer cancel()

	limit := q.Limit
	if limit <= 0 || limit > DefaultCommunityLimit {
		limit = DefaultCommunityLimit
	}

	builder := sq.Select(
		"id", "user_id", "title", "date", "mood", "tags", "is_public",
		"likes_count", "verified_community", "featured", "author",
	).
		From("itineraries").
		Where(sq.Eq{"is_public": true}).
		OrderBy("likes_count DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar)
	if q.Mood != "" {
		builder = builder.Where(sq.Eq{"mood": q.Mood})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, &Error{Kind: KindRejected, Op: "build community query", Err: err}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Warn("Failed to fetch community feed", zap.Error(err))
		return nil, classify("fetch community", err)
	}
	defer rows.Close()

	var headers []ItineraryHeader
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, classify("scan community header", err)
		}
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate community headers", err)
	}

	out := make([]models.Itinerary, 0, len(headers))
	for _, h := range headers {
		itemRows, err := r.fetchItemRows(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, FromRelational(h, itemRows))
	}
	return out, nil
}

func (r *RepositoryImpl) fetchItemRows(ctx context.Context, itineraryID uuid.UUID) ([]ItemRow, error) {
	query := `
        SELECT ii.time, ii.activity, ii.description, ii.order_index, ii.completed, ii.user_review,
               p.name, p.category, p.rating, p.review_count, p.price, p.image_url, p.verified
        FROM itinerary_items ii
        LEFT JOIN places p ON p.id = ii.place_id
        WHERE ii.itinerary_id = $1
        ORDER BY ii.order_index ASC
    `
	rows, err := r.db.Query(ctx, query, itineraryID)
	if err != nil {
		r.logger.Warn("Failed to fetch itinerary items", zap.String("id", itineraryID.String()), zap.Error(err))
		return nil, classify("fetch itinerary items", err)
	}
	defer rows.Close()

	var out []ItemRow
	for rows.Next() {
		var row ItemRow
		var review []byte
		err := rows.Scan(
			&row.Time, &row.Activity, &row.Description, &row.OrderIndex, &row.Completed, &review,
			&row.PlaceName, &row.PlaceCategory, &row.PlaceRating, &row.PlaceReviewCount,
			&row.PlacePrice, &row.PlaceImageURL, &row.PlaceVerified,
		)
		if err != nil {
			return nil, classify("scan itinerary item", err)
		}
		if len(review) > 0 {
			var ur models.UserReview
			if err := json.Unmarshal(review, &ur); err == nil {
				row.UserReview = &ur
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate itinerary items", err)
	}
	return out, nil
}

// FetchProfile loads the stored preference fields for a user. Callers race
// this against the hot-path timeout; a cold database must never block the
// initial render.
func (r *RepositoryImpl) FetchProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	ctx, cancel := withDeadline(ctx, r.timeouts.ProfileFetch)
	defer cancel()

	var p models.UserProfile
	query := `SELECT id, email, name, city, personality, created_at FROM profiles WHERE id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.ID, &p.Email, &p.Name, &p.City, &p.Personality, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", userID, models.ErrNotFound)
		}
		r.logger.Warn("Failed to fetch profile", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, classify("fetch profile", err)
	}
	return &p, nil
}

// SaveProfile upserts the preference fields. Email and name originate from
// the identity provider but are mirrored here so the profile row is whole.
func (r *RepositoryImpl) SaveProfile(ctx context.Context, userID uuid.UUID, profile models.UserProfile) error {
	ctx, cancel := withDeadline(ctx, r.timeouts.RemoteWrite)
	defer cancel()

	query := `
        INSERT INTO profiles (id, email, name, city, personality)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name, city = EXCLUDED.city, personality = EXCLUDED.personality
    `
	if _, err := r.db.Exec(ctx, query,
		userID, profile.Email, profile.Name, profile.City, profile.Personality,
	); err != nil {
		r.logger.Warn("Failed to upsert profile", zap.String("user_id", userID.String()), zap.Error(err))
		return classify("save profile", err)
	}
	return nil
}

// SavePrivacySettings has no local durable leg; its failure surfaces to the
// caller instead of being swallowed.
func (r *RepositoryImpl) SavePrivacySettings(ctx context.Context, userID uuid.UUID, settings models.PrivacySettings) error {
	ctx, cancel := withDeadline(ctx, r.timeouts.RemoteWrite)
	defer cancel()

	query := `
        INSERT INTO privacy_settings (user_id, public_profile, show_city, allow_remixes, email_updates_ok)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id) DO UPDATE SET
            public_profile = EXCLUDED.public_profile, show_city = EXCLUDED.show_city,
            allow_remixes = EXCLUDED.allow_remixes, email_updates_ok = EXCLUDED.email_updates_ok
    `
	if _, err := r.db.Exec(ctx, query,
		userID, settings.PublicProfile, settings.ShowCity, settings.AllowRemixes, settings.EmailUpdatesOK,
	); err != nil {
		r.logger.Error("Failed to save privacy settings", zap.String("user_id", userID.String()), zap.Error(err))
		return classify("save privacy settings", err)
	}
	return nil
}

// DeleteAccount removes the user's remote data. Irreversible and server-only,
// so failures are surfaced, never suppressed.
func (r *RepositoryImpl) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := withDeadline(ctx, r.timeouts.RemoteWrite)
	defer cancel()

	for _, query := range []string{
		`DELETE FROM itinerary_items WHERE itinerary_id IN (SELECT id FROM itineraries WHERE user_id = $1)`,
		`DELETE FROM itineraries WHERE user_id = $1`,
		`DELETE FROM privacy_settings WHERE user_id = $1`,
		`DELETE FROM profiles WHERE id = $1`,
	} {
		if _, err := r.db.Exec(ctx, query, userID); err != nil {
			r.logger.Error("Failed to delete account data", zap.String("user_id", userID.String()), zap.Error(err))
			return classify("delete account", err)
		}
	}
	return nil
}
