package remote

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/models"
	"github.com/roamly-app/roamly/internal/pkg/config"
)

func testTimeouts() config.TimeoutsConfig {
	return config.TimeoutsConfig{
		ProfileFetch: time.Second,
		RemoteRead:   5 * time.Second,
		RemoteWrite:  5 * time.Second,
	}
}

// anyArgs returns n pgxmock.AnyArg matchers; pgxmock compares argument
// counts unconditionally, so every ExpectExec needs the right arity even
// when the values themselves don't matter.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *RepositoryImpl) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRepository(mock, testTimeouts(), zap.NewNop())
}

func TestSaveItinerary_ThreeStepWriteOrder(t *testing.T) {
	mock, repo := newMockRepo(t)

	userID := uuid.New()
	it := models.Itinerary{
		ID:    uuid.New().String(),
		Title: "Neon Nights",
		Items: []models.ItineraryItem{
			{Time: "19:00", LocationName: "Bar A"},
			{Time: "21:00", LocationName: "Bar B"},
		},
	}

	// Header upsert, then one place upsert per distinct name, then the
	// delete-and-recreate of item links. Order matters for referential
	// correctness and pgxmock enforces it.
	mock.ExpectExec("INSERT INTO itineraries").WithArgs(anyArgs(11)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO places").WithArgs(anyArgs(8)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO places").WithArgs(anyArgs(8)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM itinerary_items").WithArgs(anyArgs(1)...).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO itinerary_items").WithArgs(anyArgs(8)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO itinerary_items").WithArgs(anyArgs(8)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.SaveItinerary(context.Background(), userID, it)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveItinerary_RejectsNonUUIDWithoutTouchingDB(t *testing.T) {
	mock, repo := newMockRepo(t)

	err := repo.SaveItinerary(context.Background(), uuid.New(), models.Itinerary{ID: "not-a-uuid"})
	require.Error(t, err)
	assert.False(t, IsUnavailable(err), "a bad id is a rejection, not an outage")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveItinerary_ClassifiesConstraintViolationAsRejected(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec("INSERT INTO itineraries").
		WithArgs(anyArgs(11)...).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	err := repo.SaveItinerary(context.Background(), uuid.New(), models.Itinerary{ID: uuid.New().String()})
	require.Error(t, err)
	assert.False(t, IsUnavailable(err))
}

func TestFetchItineraries_FlattensJoinOrderedByIndex(t *testing.T) {
	mock, repo := newMockRepo(t)

	userID := uuid.New()
	itineraryID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM itineraries").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "title", "date", "mood", "tags", "is_public",
			"likes_count", "verified_community", "featured", "author",
		}).AddRow(
			itineraryID, userID, "Harbor Day", "Sat", "chill", []string{"sea"},
			false, 0, false, false, "",
		))

	// Rows deliberately out of order; order_index must win.
	mock.ExpectQuery("SELECT (.+) FROM itinerary_items").
		WithArgs(itineraryID).
		WillReturnRows(pgxmock.NewRows([]string{
			"time", "activity", "description", "order_index", "completed", "user_review",
			"name", "category", "rating", "review_count", "price", "image_url", "verified",
		}).
			AddRow("13:00", "Lunch", "", 1, false, []byte(nil),
				strPtr("Fish Shack"), strPtr("Food"), floatPtr(4.5), intPtr(120), strPtr("$$"), strPtr(""), boolPtr(true)).
			AddRow("09:00", "Walk", "", 0, true, []byte(nil),
				strPtr("Pier"), strPtr("Activity"), floatPtr(4.1), intPtr(30), strPtr("$"), strPtr(""), boolPtr(false)))

	list, err := repo.FetchItineraries(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Items, 2)
	assert.Equal(t, "Pier", list[0].Items[0].LocationName)
	assert.Equal(t, "Fish Shack", list[0].Items[1].LocationName)
	assert.True(t, list[0].Items[0].Completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchItineraries_TimeoutClassifiedAsUnavailable(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM itineraries").
		WillReturnError(context.DeadlineExceeded)

	_, err := repo.FetchItineraries(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func boolPtr(b bool) *bool        { return &b }
