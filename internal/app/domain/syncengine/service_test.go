package syncengine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/domain/localstore"
	"github.com/roamly-app/roamly/internal/app/domain/remote"
	"github.com/roamly-app/roamly/internal/app/models"
)

// MockRemoteStore is a mock implementation of remote.Store.
type MockRemoteStore struct {
	mock.Mock
}

func (m *MockRemoteStore) SaveItinerary(ctx context.Context, userID uuid.UUID, it models.Itinerary) error {
	args := m.Called(ctx, userID, it)
	return args.Error(0)
}

func (m *MockRemoteStore) FetchItineraries(ctx context.Context, userID uuid.UUID) ([]models.Itinerary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Itinerary), args.Error(1)
}

func (m *MockRemoteStore) FetchItinerary(ctx context.Context, id string) (*models.Itinerary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Itinerary), args.Error(1)
}

func (m *MockRemoteStore) FetchCommunity(ctx context.Context, q remote.CommunityQuery) ([]models.Itinerary, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Itinerary), args.Error(1)
}

func (m *MockRemoteStore) FetchProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

func (m *MockRemoteStore) SaveProfile(ctx context.Context, userID uuid.UUID, profile models.UserProfile) error {
	args := m.Called(ctx, userID, profile)
	return args.Error(0)
}

func (m *MockRemoteStore) SavePrivacySettings(ctx context.Context, userID uuid.UUID, settings models.PrivacySettings) error {
	args := m.Called(ctx, userID, settings)
	return args.Error(0)
}

func (m *MockRemoteStore) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type fakeSessions struct {
	session *models.Session
}

func (f *fakeSessions) CurrentSession() *models.Session { return f.session }

func unavailable(op string) error {
	return &remote.Error{Kind: remote.KindUnavailable, Op: op, Err: context.DeadlineExceeded}
}

func newEngine(t *testing.T, session *models.Session) (*ServiceImpl, *localstore.Store, *MockRemoteStore) {
	t.Helper()
	local := localstore.New(filepath.Join(t.TempDir(), "store.json"), zap.NewNop())
	remoteStore := new(MockRemoteStore)
	svc := NewService(local, remoteStore, &fakeSessions{session: session}, zap.NewNop())
	return svc, local, remoteStore
}

func testSession() *models.Session {
	return &models.Session{
		UserID:   uuid.New(),
		Email:    "alice@example.com",
		Metadata: map[string]string{"name": "Alice"},
	}
}

// Durability: a save with the remote down must be fully readable through the
// cache fallback, id, title and item order intact.
func TestSaveItinerary_DurableThroughRemoteOutage(t *testing.T) {
	session := testSession()
	svc, _, remoteStore := newEngine(t, session)

	remoteStore.On("SaveItinerary", mock.Anything, session.UserID, mock.Anything).
		Return(unavailable("save itinerary"))
	remoteStore.On("FetchItineraries", mock.Anything, session.UserID).
		Return(nil, unavailable("fetch itineraries"))

	src := models.Itinerary{
		ID:    "not-a-uuid-123",
		Title: "Neon Nights",
		Items: []models.ItineraryItem{
			{Time: "19:00", LocationName: "Bar A"},
			{Time: "21:00", LocationName: "Bar B"},
		},
	}

	result := svc.SaveItinerary(context.Background(), src)
	assert.True(t, result.LocalSaved)
	assert.False(t, result.RemoteSynced)

	// The client-generated id was coerced to a real UUID.
	_, err := uuid.Parse(result.ID)
	require.NoError(t, err)

	list := svc.GetSavedItineraries(context.Background())
	require.Len(t, list, 1)
	assert.Equal(t, result.ID, list[0].ID)
	assert.Equal(t, "Neon Nights", list[0].Title)
	require.Len(t, list[0].Items, 2)
	assert.Equal(t, "Bar A", list[0].Items[0].LocationName)
	assert.Equal(t, "Bar B", list[0].Items[1].LocationName)
}

func TestSaveItinerary_ValidUUIDUnchanged(t *testing.T) {
	svc, _, _ := newEngine(t, nil)

	id := uuid.New().String()
	result := svc.SaveItinerary(context.Background(), models.Itinerary{ID: id, Title: "Keep Id"})
	assert.Equal(t, id, result.ID)
}

func TestSaveItinerary_AnonymousSkipsRemote(t *testing.T) {
	svc, _, remoteStore := newEngine(t, nil)

	result := svc.SaveItinerary(context.Background(), models.Itinerary{ID: uuid.New().String()})
	assert.True(t, result.LocalSaved)
	assert.False(t, result.RemoteSynced)
	remoteStore.AssertNotCalled(t, "SaveItinerary", mock.Anything, mock.Anything, mock.Anything)
}

// Remote-wins: a reachable remote list replaces the cached view entirely.
func TestGetSavedItineraries_RemoteReplacesCache(t *testing.T) {
	session := testSession()
	svc, local, remoteStore := newEngine(t, session)

	a := models.Itinerary{ID: uuid.New().String(), Title: "A"}
	b := models.Itinerary{ID: uuid.New().String(), Title: "B"}
	c := models.Itinerary{ID: uuid.New().String(), Title: "C"}

	local.SetSavedItineraries([]models.Itinerary{a, b})
	remoteStore.On("FetchItineraries", mock.Anything, session.UserID).
		Return([]models.Itinerary{a, c}, nil)

	list := svc.GetSavedItineraries(context.Background())
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Title)
	assert.Equal(t, "C", list[1].Title)

	// The cache slot was refreshed so the offline fallback stays current.
	cached := local.GetSavedItineraries()
	require.Len(t, cached, 2)
	assert.Equal(t, "C", cached[1].Title)
}

func TestGetSavedItineraries_FallsBackToCacheWhenRemoteDown(t *testing.T) {
	session := testSession()
	svc, local, remoteStore := newEngine(t, session)

	a := models.Itinerary{ID: uuid.New().String(), Title: "A"}
	b := models.Itinerary{ID: uuid.New().String(), Title: "B"}
	local.SetSavedItineraries([]models.Itinerary{a, b})

	remoteStore.On("FetchItineraries", mock.Anything, session.UserID).
		Return(nil, unavailable("fetch itineraries"))

	list := svc.GetSavedItineraries(context.Background())
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Title)
	assert.Equal(t, "B", list[1].Title)
}

func TestGetSavedItineraries_EmptyRemoteFallsBackToCache(t *testing.T) {
	session := testSession()
	svc, local, remoteStore := newEngine(t, session)

	a := models.Itinerary{ID: uuid.New().String(), Title: "A"}
	local.SetSavedItineraries([]models.Itinerary{a})

	remoteStore.On("FetchItineraries", mock.Anything, session.UserID).
		Return([]models.Itinerary{}, nil)

	list := svc.GetSavedItineraries(context.Background())
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Title)
}

func TestGetItineraryByID_LocalBeforeRemote(t *testing.T) {
	svc, local, remoteStore := newEngine(t, nil)

	saved := models.Itinerary{ID: uuid.New().String(), Title: "Saved Plan"}
	community := models.Itinerary{ID: uuid.New().String(), Title: "Community Plan", Shared: true}
	local.SetSavedItineraries([]models.Itinerary{saved})
	local.SetCommunityItineraries([]models.Itinerary{community})

	got, err := svc.GetItineraryByID(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Saved Plan", got.Title)

	got, err = svc.GetItineraryByID(context.Background(), community.ID)
	require.NoError(t, err)
	assert.Equal(t, "Community Plan", got.Title)

	remoteStore.AssertNotCalled(t, "FetchItinerary", mock.Anything, mock.Anything)
}

// Idempotent publish: two publishes of the same itinerary yield exactly one
// community entry with the stamped author and shared flag.
func TestPublishItinerary_Idempotent(t *testing.T) {
	session := testSession()
	svc, local, remoteStore := newEngine(t, session)

	remoteStore.On("SaveItinerary", mock.Anything, session.UserID, mock.Anything).Return(nil)

	it := models.Itinerary{ID: uuid.New().String(), Title: "Harbor Walk"}
	first := svc.PublishItinerary(context.Background(), it, "Alice")
	second := svc.PublishItinerary(context.Background(), it, "Alice")
	assert.True(t, first.LocalSaved)
	assert.True(t, second.LocalSaved)

	snapshot := local.GetCommunityItineraries()
	require.Len(t, snapshot, 1)
	assert.Equal(t, it.ID, snapshot[0].ID)
	assert.Equal(t, "Alice", snapshot[0].Author)
	assert.True(t, snapshot[0].Shared)
}

func TestGetCommunityItineraries_SeededWhenRemoteDown(t *testing.T) {
	svc, local, remoteStore := newEngine(t, nil)

	remoteStore.On("FetchCommunity", mock.Anything, mock.Anything).
		Return(nil, unavailable("fetch community"))

	published := models.Itinerary{ID: uuid.New().String(), Title: "My Local Publish", Shared: true}
	local.PrependCommunityItinerary(published)

	feed := svc.GetCommunityItineraries(context.Background())
	require.NotEmpty(t, feed)
	assert.Equal(t, "My Local Publish", feed[0].Title, "local snapshot first")
	assert.Greater(t, len(feed), 1, "seed entries top up the feed")
}

func TestGetCommunityItineraries_RemoteWins(t *testing.T) {
	svc, _, remoteStore := newEngine(t, nil)

	feed := []models.Itinerary{
		{ID: uuid.New().String(), Title: "Top Liked", Likes: 400, Shared: true},
	}
	remoteStore.On("FetchCommunity", mock.Anything, mock.Anything).Return(feed, nil)

	got := svc.GetCommunityItineraries(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, "Top Liked", got[0].Title)
}

// Timeout fallback: a profile fetch that cannot complete within its deadline
// yields a session+cache profile promptly, not after the remote's own
// schedule.
func TestGetUser_TimeoutFallsBackToSessionAndCachedPrefs(t *testing.T) {
	session := testSession()
	svc, local, remoteStore := newEngine(t, session)

	local.SetCurrentUser(models.UserProfile{
		City:        "Lisbon",
		Personality: models.PersonalityFoodie,
	})
	remoteStore.On("FetchProfile", mock.Anything, session.UserID).
		Return(nil, unavailable("fetch profile"))

	start := time.Now()
	profile := svc.GetUser(context.Background())
	elapsed := time.Since(start)

	require.NotNil(t, profile)
	assert.Equal(t, "Alice", profile.Name)
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, "Lisbon", profile.City)
	assert.Equal(t, models.PersonalityFoodie, profile.Personality)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestGetUser_RemoteProfileMergedWithSessionIdentity(t *testing.T) {
	session := testSession()
	svc, _, remoteStore := newEngine(t, session)

	remoteStore.On("FetchProfile", mock.Anything, session.UserID).
		Return(&models.UserProfile{
			Name:        "Alice Stored",
			Email:       "stale@example.com",
			City:        "Porto",
			Personality: models.PersonalityChill,
		}, nil)

	profile := svc.GetUser(context.Background())
	require.NotNil(t, profile)
	// Email always comes from the identity provider.
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, "Porto", profile.City)
}

// Logout clears user-owned slots but not the community snapshot.
func TestClearUser_KeepsCommunity(t *testing.T) {
	svc, local, remoteStore := newEngine(t, nil)

	local.SetCurrentUser(models.UserProfile{Name: "Alice"})
	local.SetSavedItineraries([]models.Itinerary{{ID: uuid.New().String()}})
	community := models.Itinerary{ID: uuid.New().String(), Title: "Public", Shared: true}
	local.SetCommunityItineraries([]models.Itinerary{community})

	svc.ClearUser()

	assert.Nil(t, svc.GetUser(context.Background()))
	assert.Empty(t, svc.GetSavedItineraries(context.Background()))

	remoteStore.On("FetchCommunity", mock.Anything, mock.Anything).
		Return(nil, unavailable("fetch community"))
	feed := svc.GetCommunityItineraries(context.Background())
	require.NotEmpty(t, feed)
	assert.Equal(t, community.ID, feed[0].ID)
}

func TestRemixItinerary_FreshIDAndResetFlags(t *testing.T) {
	svc, local, _ := newEngine(t, nil)

	src := models.Itinerary{
		ID:                uuid.New().String(),
		Title:             "Harbor Walk",
		Shared:            true,
		Likes:             12,
		VerifiedCommunity: true,
		Items:             []models.ItineraryItem{{Time: "09:00", LocationName: "Pier"}},
	}
	local.SetCommunityItineraries([]models.Itinerary{src})

	clone, err := svc.RemixItinerary(context.Background(), src.ID)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, clone.ID)
	assert.False(t, clone.Shared)
	assert.Zero(t, clone.Likes)
	assert.False(t, clone.VerifiedCommunity)
	require.Len(t, clone.Items, 1)

	saved := local.GetSavedItineraries()
	require.Len(t, saved, 1)
	assert.Equal(t, clone.ID, saved[0].ID)
}

func TestSavePrivacySettings_NoSessionSurfacesError(t *testing.T) {
	svc, _, _ := newEngine(t, nil)
	err := svc.SavePrivacySettings(context.Background(), models.PrivacySettings{PublicProfile: true})
	assert.ErrorIs(t, err, models.ErrNoSession)
}

func TestSlotGuard_StaleResponseDropped(t *testing.T) {
	var g slotGuard

	first := g.begin()
	second := g.begin()

	// The newer request lands first; the stale one must not apply.
	assert.True(t, g.commit(second))
	assert.False(t, g.commit(first))
}
