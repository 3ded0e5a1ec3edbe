package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/models"
	"github.com/roamly-app/roamly/internal/pkg/config"
)

type storedToken struct {
	userID    uuid.UUID
	purpose   string
	expiresAt time.Time
	used      bool
}

// fakeRepo is an in-memory Repo for exercising the identity service without
// a database.
type fakeRepo struct {
	mu            sync.Mutex
	users         map[string]*UserRecord // keyed by email
	refreshTokens map[string]uuid.UUID
	oneTimeCodes  map[string]*storedToken // keyed by code
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:         make(map[string]*UserRecord),
		refreshTokens: make(map[string]uuid.UUID),
		oneTimeCodes:  make(map[string]*storedToken),
	}
}

func (f *fakeRepo) addUser(name, email, password string) *UserRecord {
	hash, _ := HashPassword(password)
	user := &UserRecord{ID: uuid.New(), Name: name, Email: email, PasswordHash: hash, Role: "member"}
	f.mu.Lock()
	f.users[email] = user
	f.mu.Unlock()
	return user
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (*UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[email]
	if !ok {
		return nil, fmt.Errorf("no user %s: %w", email, models.ErrNotFound)
	}
	copied := *user
	return &copied, nil
}

func (f *fakeRepo) GetUserByID(_ context.Context, userID uuid.UUID) (*UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == userID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no user %s: %w", userID, models.ErrNotFound)
}

func (f *fakeRepo) CreateUser(_ context.Context, name, email, passwordHash string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[email]; exists {
		return uuid.Nil, fmt.Errorf("email taken: %w", models.ErrConflict)
	}
	user := &UserRecord{ID: uuid.New(), Name: name, Email: email, PasswordHash: passwordHash, Role: "member"}
	f.users[email] = user
	return user.ID, nil
}

func (f *fakeRepo) UpdatePassword(_ context.Context, userID uuid.UUID, newPasswordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == userID {
			user.PasswordHash = newPasswordHash
			return nil
		}
	}
	return models.ErrNotFound
}

func (f *fakeRepo) StoreRefreshToken(_ context.Context, userID uuid.UUID, token string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshTokens[token] = userID
	return nil
}

func (f *fakeRepo) ValidateRefreshToken(_ context.Context, token string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.refreshTokens[token]
	if !ok {
		return uuid.Nil, fmt.Errorf("refresh token invalid: %w", models.ErrUnauthenticated)
	}
	return userID, nil
}

func (f *fakeRepo) InvalidateRefreshToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refreshTokens, token)
	return nil
}

func (f *fakeRepo) StoreOneTimeToken(_ context.Context, userID uuid.UUID, purpose, code string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.oneTimeCodes[code] = &storedToken{userID: userID, purpose: purpose, expiresAt: expiresAt}
	return nil
}

func (f *fakeRepo) ConsumeOneTimeToken(_ context.Context, purpose, code string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.oneTimeCodes[code]
	if !ok || stored.used || stored.purpose != purpose || time.Now().After(stored.expiresAt) {
		return uuid.Nil, fmt.Errorf("code invalid: %w", models.ErrUnauthenticated)
	}
	stored.used = true
	return stored.userID, nil
}

// lastCodeFor returns the most recently stored unused code for a user, the
// way an email delivery hook would see it.
func (f *fakeRepo) lastCodeFor(userID uuid.UUID, purpose string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for code, stored := range f.oneTimeCodes {
		if stored.userID == userID && stored.purpose == purpose && !stored.used {
			return code
		}
	}
	return ""
}

func newTestIdentity(t *testing.T, repo Repo) *IdentityService {
	t.Helper()
	cfg := config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
	tokenPath := filepath.Join(t.TempDir(), "session.json")
	return NewIdentityService(repo, cfg, tokenPath, zap.NewNop())
}

func TestIdentity_SignInWithValidCredentials(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("Ana", "ana@example.com", "hunter2")
	svc := newTestIdentity(t, repo)

	session, err := svc.SignIn(context.Background(), "ana@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
	assert.Equal(t, "ana@example.com", session.Email)
	assert.Equal(t, "Ana", session.DisplayName())

	// The session file should now hold the refresh token.
	_, err = os.Stat(svc.tokenPath)
	assert.NoError(t, err)
}

func TestIdentity_SignInRejectsWrongPassword(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser("Ana", "ana@example.com", "hunter2")
	svc := newTestIdentity(t, repo)

	_, err := svc.SignIn(context.Background(), "ana@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestIdentity_SignInRejectsEmptyEmail(t *testing.T) {
	svc := newTestIdentity(t, newFakeRepo())

	_, err := svc.SignIn(context.Background(), "", "hunter2")
	assert.ErrorIs(t, err, models.ErrEmailEmpty)
}

func TestIdentity_SignUpOpensSession(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestIdentity(t, repo)

	session, err := svc.SignUp(context.Background(), "Bruno", "bruno@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "bruno@example.com", session.Email)

	current, err := svc.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, session.UserID, current.UserID)
}

func TestIdentity_OtpFlow(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("Ana", "ana@example.com", "hunter2")
	svc := newTestIdentity(t, repo)

	require.NoError(t, svc.SignInWithOtp(context.Background(), "ana@example.com"))
	code := repo.lastCodeFor(user.ID, purposeOtp)
	require.NotEmpty(t, code)
	assert.Len(t, code, 6)

	session, err := svc.VerifyOtp(context.Background(), "ana@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)

	// The code is single use.
	_, err = svc.VerifyOtp(context.Background(), "ana@example.com", code)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestIdentity_OtpDoesNotLeakUnknownEmails(t *testing.T) {
	svc := newTestIdentity(t, newFakeRepo())

	assert.NoError(t, svc.SignInWithOtp(context.Background(), "nobody@example.com"))
}

func TestIdentity_OtpRejectsEmailMismatch(t *testing.T) {
	repo := newFakeRepo()
	ana := repo.addUser("Ana", "ana@example.com", "hunter2")
	repo.addUser("Bruno", "bruno@example.com", "s3cret")
	svc := newTestIdentity(t, repo)

	require.NoError(t, svc.SignInWithOtp(context.Background(), "ana@example.com"))
	code := repo.lastCodeFor(ana.ID, purposeOtp)
	require.NotEmpty(t, code)

	_, err := svc.VerifyOtp(context.Background(), "bruno@example.com", code)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestIdentity_PasswordResetFlow(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("Ana", "ana@example.com", "hunter2")
	svc := newTestIdentity(t, repo)

	require.NoError(t, svc.ResetPassword(context.Background(), "ana@example.com"))
	code := repo.lastCodeFor(user.ID, purposePasswordReset)
	require.NotEmpty(t, code)

	require.NoError(t, svc.ConfirmPasswordReset(context.Background(), code, "newpass"))

	_, err := svc.SignIn(context.Background(), "ana@example.com", "hunter2")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	_, err = svc.SignIn(context.Background(), "ana@example.com", "newpass")
	assert.NoError(t, err)
}

func TestIdentity_SignOutDropsSession(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser("Ana", "ana@example.com", "hunter2")
	svc := newTestIdentity(t, repo)

	_, err := svc.SignIn(context.Background(), "ana@example.com", "hunter2")
	require.NoError(t, err)

	err = svc.SignOut(context.Background())
	assert.NoError(t, err)

	session, err := svc.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
	_, statErr := os.Stat(svc.tokenPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestIdentity_GetSessionRestoresFromPersistedToken(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("Ana", "ana@example.com", "hunter2")

	first := newTestIdentity(t, repo)
	_, err := first.SignIn(context.Background(), "ana@example.com", "hunter2")
	require.NoError(t, err)

	// A fresh service sharing the same token file sees the session again.
	cfg := config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: 15 * time.Minute, RefreshTokenTTL: 24 * time.Hour}
	second := NewIdentityService(repo, cfg, first.tokenPath, zap.NewNop())

	var refreshed int
	second.OnAuthStateChange(func(event models.AuthEvent, _ *models.Session) {
		if event == models.AuthTokenRefreshed {
			refreshed++
		}
	})

	session, err := second.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, user.ID, session.UserID)
	assert.Equal(t, 1, refreshed)
}

func TestIdentity_GetSessionDiscardsStaleToken(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser("Ana", "ana@example.com", "hunter2")

	first := newTestIdentity(t, repo)
	_, err := first.SignIn(context.Background(), "ana@example.com", "hunter2")
	require.NoError(t, err)

	// Revoke everything server side, keep the file around.
	repo.mu.Lock()
	repo.refreshTokens = make(map[string]uuid.UUID)
	repo.mu.Unlock()

	cfg := config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: 15 * time.Minute, RefreshTokenTTL: 24 * time.Hour}
	second := NewIdentityService(repo, cfg, first.tokenPath, zap.NewNop())

	session, err := second.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)

	_, statErr := os.Stat(first.tokenPath)
	assert.True(t, os.IsNotExist(statErr), "stale session file should be removed")
}

func TestIdentity_AccessTokenForSession(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser("Ana", "ana@example.com", "hunter2")
	svc := newTestIdentity(t, repo)

	session, err := svc.SignIn(context.Background(), "ana@example.com", "hunter2")
	require.NoError(t, err)

	token, err := svc.AccessTokenFor(session)
	require.NoError(t, err)
	claims, err := ValidateAccessToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, session.UserID.String(), claims.UserID)

	_, err = svc.AccessTokenFor(nil)
	assert.ErrorIs(t, err, models.ErrNoSession)
}
