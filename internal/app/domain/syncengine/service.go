// Package syncengine reconciles the always-available local store with the
// eventually-available remote store. The policy throughout: local writes are
// unconditional and first, remote legs are best-effort enhancements, and a
// reachable remote replaces the cached view on reads rather than merging
// with it.
package syncengine

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/domain/localstore"
	"github.com/roamly-app/roamly/internal/app/domain/remote"
	"github.com/roamly-app/roamly/internal/app/models"
)

const communityFeedKey = "community:feed"

// SessionSource exposes the currently authenticated session, or nil for an
// anonymous user. Anonymous users are local-store-only.
type SessionSource interface {
	CurrentSession() *models.Session
}

// SaveResult distinguishes the two durability levels of a write: the local
// commit (which cannot fail) and the remote confirmation (which is
// best-effort).
type SaveResult struct {
	ID           string
	LocalSaved   bool
	RemoteSynced bool
}

var _ Service = (*ServiceImpl)(nil)

// Service is the synchronization contract consumed by the presentation
// layer and the session lifecycle controller. All operations are idempotent
// with respect to itinerary id.
type Service interface {
	SaveItinerary(ctx context.Context, it models.Itinerary) SaveResult
	GetSavedItineraries(ctx context.Context) []models.Itinerary
	GetItineraryByID(ctx context.Context, id string) (*models.Itinerary, error)
	PublishItinerary(ctx context.Context, it models.Itinerary, authorName string) SaveResult
	RemixItinerary(ctx context.Context, id string) (*models.Itinerary, error)
	GetCommunityItineraries(ctx context.Context) []models.Itinerary
	GetUser(ctx context.Context) *models.UserProfile
	SaveUser(ctx context.Context, profile models.UserProfile) SaveResult
	ClearUser()

	// Remote-only operations with no durable local leg; failures surface.
	SavePrivacySettings(ctx context.Context, settings models.PrivacySettings) error
	DeleteAccount(ctx context.Context) error
}

type ServiceImpl struct {
	logger   *zap.Logger
	local    *localstore.Store
	remote   remote.Store
	sessions SessionSource
	feed     *cache.Cache

	savedGuard     slotGuard
	userGuard      slotGuard
	communityGuard slotGuard
}

func NewService(local *localstore.Store, remoteStore remote.Store, sessions SessionSource, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		local:    local,
		remote:   remoteStore,
		sessions: sessions,
		feed:     cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *ServiceImpl) tracer() trace.Tracer {
	return otel.Tracer("SyncEngine")
}

// SaveItinerary commits the itinerary locally first, then best-effort syncs
// it remotely when a session exists. The local write is the durability
// guarantee: a remote outage degrades multi-device sync, never this device.
func (s *ServiceImpl) SaveItinerary(ctx context.Context, it models.Itinerary) SaveResult {
	ctx, span := s.tracer().Start(ctx, "SyncEngine.SaveItinerary")
	defer span.End()

	it.ID = it.EnsureUUID()
	span.SetAttributes(attribute.String("itinerary.id", it.ID))

	s.local.SaveItinerary(it)
	result := SaveResult{ID: it.ID, LocalSaved: true}

	session := s.sessions.CurrentSession()
	if session == nil {
		s.logger.Debug("No session, itinerary saved locally only", zap.String("id", it.ID))
		return result
	}

	if err := s.remote.SaveItinerary(ctx, session.UserID, it); err != nil {
		// The local leg already succeeded; the failure is logged, not
		// surfaced.
		s.logger.Warn("Remote itinerary sync failed",
			zap.String("id", it.ID),
			zap.Error(err),
		)
		return result
	}

	result.RemoteSynced = true
	return result
}

// GetSavedItineraries returns the remote list when reachable (remote is the
// multi-device source of truth: it replaces the cached view, no field-level
// merge) and the cached list otherwise. A reachable-but-empty remote also
// falls back to the cache, which protects a fresh account on a new device
// from wiping local-only plans.
func (s *ServiceImpl) GetSavedItineraries(ctx context.Context) []models.Itinerary {
	ctx, span := s.tracer().Start(ctx, "SyncEngine.GetSavedItineraries")
	defer span.End()

	session := s.sessions.CurrentSession()
	if session == nil {
		return s.local.GetSavedItineraries()
	}

	token := s.savedGuard.begin()
	list, err := s.remote.FetchItineraries(ctx, session.UserID)
	if err != nil || len(list) == 0 {
		if err != nil {
			s.logger.Debug("Remote itinerary fetch failed, serving cache", zap.Error(err))
		}
		return s.local.GetSavedItineraries()
	}

	// Refresh the cache slot so the offline fallback stays current, unless
	// a newer request already landed.
	if s.savedGuard.commit(token) {
		s.local.SetSavedItineraries(list)
	}
	return list
}

// GetItineraryByID checks the saved list, then the community snapshot, then
// the remote store. First hit wins: local latency beats remote correctness
// for this read.
func (s *ServiceImpl) GetItineraryByID(ctx context.Context, id string) (*models.Itinerary, error) {
	for _, it := range s.local.GetSavedItineraries() {
		if it.ID == id {
			found := it
			return &found, nil
		}
	}
	for _, it := range s.local.GetCommunityItineraries() {
		if it.ID == id {
			found := it
			return &found, nil
		}
	}

	it, err := s.remote.FetchItinerary(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrBadRequest) {
			return nil, models.ErrNotFound
		}
		s.logger.Debug("Remote itinerary lookup failed", zap.String("id", id), zap.Error(err))
		return nil, models.ErrNotFound
	}
	return it, nil
}

// PublishItinerary stamps the itinerary as shared, echoes it into the local
// community snapshot immediately so the publishing user sees it even if the
// remote leg is slow or down, then runs the normal save flow so the remote
// is_public flag flips. Publishing twice is idempotent: the snapshot holds
// one entry per id.
func (s *ServiceImpl) PublishItinerary(ctx context.Context, it models.Itinerary, authorName string) SaveResult {
	ctx, span := s.tracer().Start(ctx, "SyncEngine.PublishItinerary")
	defer span.End()

	it.ID = it.EnsureUUID()
	it.Shared = true
	it.Author = authorName

	s.local.PrependCommunityItinerary(it)
	s.feed.Delete(communityFeedKey)

	return s.SaveItinerary(ctx, it)
}

// RemixItinerary clones an existing itinerary under a fresh id with sharing
// state reset, and saves the copy through the normal flow.
func (s *ServiceImpl) RemixItinerary(ctx context.Context, id string) (*models.Itinerary, error) {
	src, err := s.GetItineraryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	clone := src.Remix()
	s.SaveItinerary(ctx, clone)
	return &clone, nil
}

// GetCommunityItineraries serves the public feed: remote ordered by likes
// descending and page-bounded when reachable, otherwise the local snapshot
// topped up with the built-in seed set so the feed is never empty for a
// first-run or offline user.
func (s *ServiceImpl) GetCommunityItineraries(ctx context.Context) []models.Itinerary {
	ctx, span := s.tracer().Start(ctx, "SyncEngine.GetCommunityItineraries")
	defer span.End()

	if cached, ok := s.feed.Get(communityFeedKey); ok {
		if list, ok := cached.([]models.Itinerary); ok {
			return list
		}
	}

	token := s.communityGuard.begin()
	list, err := s.remote.FetchCommunity(ctx, remote.CommunityQuery{Limit: remote.DefaultCommunityLimit})
	if err == nil && len(list) > 0 {
		if s.communityGuard.commit(token) {
			s.feed.Set(communityFeedKey, list, cache.DefaultExpiration)
		}
		return list
	}
	if err != nil {
		s.logger.Debug("Remote community fetch failed, serving snapshot and seeds", zap.Error(err))
	}

	return mergeByID(s.local.GetCommunityItineraries(), SeedCommunity())
}

// mergeByID appends fallback entries that are not already present, keeping
// the primary list's order first.
func mergeByID(primary, fallback []models.Itinerary) []models.Itinerary {
	seen := make(map[string]struct{}, len(primary))
	out := append([]models.Itinerary(nil), primary...)
	for _, it := range primary {
		seen[it.ID] = struct{}{}
	}
	for _, it := range fallback {
		if _, ok := seen[it.ID]; !ok {
			out = append(out, it)
		}
	}
	return out
}

// GetUser resolves the current profile. With a session, the remote profile
// fetch runs under the tight hot-path timeout; on failure the profile is
// rebuilt from session identity fields merged with any cached preferences,
// so the UI is never blank. Without a session, the cached profile (if any)
// is the degraded "remembered" state.
func (s *ServiceImpl) GetUser(ctx context.Context) *models.UserProfile {
	ctx, span := s.tracer().Start(ctx, "SyncEngine.GetUser")
	defer span.End()

	session := s.sessions.CurrentSession()
	if session == nil {
		return s.local.GetCurrentUser()
	}

	token := s.userGuard.begin()
	stored, err := s.remote.FetchProfile(ctx, session.UserID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Debug("Profile fetch timed out or failed, using session fallback", zap.Error(err))
		}
		return s.fallbackProfile(session)
	}

	profile := mergeProfile(session, stored)
	if s.userGuard.commit(token) {
		s.local.SetCurrentUser(profile)
	}
	return &profile
}

// fallbackProfile merges identity-provider fields with locally cached
// preference fields.
func (s *ServiceImpl) fallbackProfile(session *models.Session) *models.UserProfile {
	profile := models.UserProfile{
		ID:    session.UserID.String(),
		Name:  session.DisplayName(),
		Email: session.Email,
	}
	if cached := s.local.GetCurrentUser(); cached != nil {
		profile.City = cached.City
		profile.Personality = cached.Personality
		profile.Role = cached.Role
	}
	return &profile
}

// mergeProfile unions identity-provider-supplied fields with remotely stored
// preference fields. Email always comes from the session; it is immutable
// once set by the identity provider.
func mergeProfile(session *models.Session, stored *models.UserProfile) models.UserProfile {
	profile := *stored
	profile.ID = session.UserID.String()
	profile.Email = session.Email
	if profile.Name == "" {
		profile.Name = session.DisplayName()
	}
	return profile
}

// SaveUser writes the profile to the local slot synchronously and
// best-effort upserts it remotely.
func (s *ServiceImpl) SaveUser(ctx context.Context, profile models.UserProfile) SaveResult {
	ctx, span := s.tracer().Start(ctx, "SyncEngine.SaveUser")
	defer span.End()

	s.local.SetCurrentUser(profile)
	result := SaveResult{ID: profile.ID, LocalSaved: true}

	session := s.sessions.CurrentSession()
	if session == nil {
		return result
	}

	if err := s.remote.SaveProfile(ctx, session.UserID, profile); err != nil {
		s.logger.Warn("Remote profile sync failed", zap.Error(err))
		return result
	}
	result.RemoteSynced = true
	return result
}

// ClearUser wipes the user-owned local slots. The community snapshot stays:
// public data is not user-owned.
func (s *ServiceImpl) ClearUser() {
	s.local.Clear()
}

// SavePrivacySettings is remote-only; without a session or on failure the
// error surfaces because there is no durable local leg to fall back on.
func (s *ServiceImpl) SavePrivacySettings(ctx context.Context, settings models.PrivacySettings) error {
	session := s.sessions.CurrentSession()
	if session == nil {
		return models.ErrNoSession
	}
	return s.remote.SavePrivacySettings(ctx, session.UserID, settings)
}

// DeleteAccount removes remote data and then clears local state. The remote
// leg must succeed first: silently "deleting" an account that still exists
// remotely would be worse than failing.
func (s *ServiceImpl) DeleteAccount(ctx context.Context) error {
	session := s.sessions.CurrentSession()
	if session == nil {
		return models.ErrNoSession
	}
	if err := s.remote.DeleteAccount(ctx, session.UserID); err != nil {
		return err
	}
	s.local.Clear()
	return nil
}
