package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/models"
	"github.com/roamly-app/roamly/internal/pkg/config"
)

const (
	purposeOtp           = "otp"
	purposePasswordReset = "password_reset"

	otpTTL   = 10 * time.Minute
	resetTTL = 1 * time.Hour
)

var _ Provider = (*IdentityService)(nil)

// persistedSession is the on-disk shape that survives restarts. Only the
// opaque refresh token is stored; the session itself is rebuilt from the
// database on hydration.
type persistedSession struct {
	RefreshToken string `json:"refresh_token"`
}

type IdentityService struct {
	logger    *zap.Logger
	repo      Repo
	cfg       config.AuthConfig
	tokenPath string

	mu           sync.Mutex
	session      *models.Session
	refreshToken string
	subs         map[int]func(models.AuthEvent, *models.Session)
	nextSub      int
}

func NewIdentityService(repo Repo, cfg config.AuthConfig, tokenPath string, logger *zap.Logger) *IdentityService {
	return &IdentityService{
		logger:    logger,
		repo:      repo,
		cfg:       cfg,
		tokenPath: tokenPath,
		subs:      make(map[int]func(models.AuthEvent, *models.Session)),
	}
}

func (s *IdentityService) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	if email == "" {
		return nil, models.ErrEmailEmpty
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("sign in failed: %w", models.ErrUnauthenticated)
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		s.logger.Warn("Password mismatch on sign in", zap.String("email", email))
		return nil, fmt.Errorf("sign in failed: %w", models.ErrUnauthenticated)
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.emit(models.AuthSignedIn, session)
	return session, nil
}

func (s *IdentityService) SignUp(ctx context.Context, name, email, password string) (*models.Session, error) {
	if email == "" {
		return nil, models.ErrEmailEmpty
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	userID, err := s.repo.CreateUser(ctx, name, email, hash)
	if err != nil {
		return nil, fmt.Errorf("sign up failed: %w", err)
	}

	session, err := s.openSession(ctx, &UserRecord{ID: userID, Name: name, Email: email, Role: "member"})
	if err != nil {
		return nil, err
	}
	s.emit(models.AuthSignedIn, session)
	return session, nil
}

// SignInWithOtp issues a short-lived code for passwordless sign-in. Delivery
// is out of band; the code is written to the log in development setups.
func (s *IdentityService) SignInWithOtp(ctx context.Context, email string) error {
	if email == "" {
		return models.ErrEmailEmpty
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		// Do not leak which emails exist.
		s.logger.Warn("OTP requested for unknown email", zap.String("email", email))
		return nil
	}
	code, err := generateOtpCode()
	if err != nil {
		return err
	}
	if err := s.repo.StoreOneTimeToken(ctx, user.ID, purposeOtp, code, time.Now().Add(otpTTL)); err != nil {
		return err
	}
	s.logger.Debug("OTP code issued", zap.String("email", email), zap.String("code", code))
	return nil
}

func (s *IdentityService) VerifyOtp(ctx context.Context, email, code string) (*models.Session, error) {
	userID, err := s.repo.ConsumeOneTimeToken(ctx, purposeOtp, code)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Email != email {
		return nil, fmt.Errorf("code does not belong to %s: %w", email, models.ErrUnauthenticated)
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.emit(models.AuthSignedIn, session)
	return session, nil
}

func (s *IdentityService) ResetPassword(ctx context.Context, email string) error {
	if email == "" {
		return models.ErrEmailEmpty
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		s.logger.Warn("Password reset requested for unknown email", zap.String("email", email))
		return nil
	}
	code, err := GenerateOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.repo.StoreOneTimeToken(ctx, user.ID, purposePasswordReset, code, time.Now().Add(resetTTL)); err != nil {
		return err
	}
	s.logger.Debug("Password reset token issued", zap.String("email", email))
	return nil
}

// ConfirmPasswordReset consumes a reset token and installs the new password.
func (s *IdentityService) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	userID, err := s.repo.ConsumeOneTimeToken(ctx, purposePasswordReset, code)
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, userID, hash)
}

// SignOut revokes the refresh token remotely and always drops the persisted
// session file, even when the remote call fails.
func (s *IdentityService) SignOut(ctx context.Context) error {
	s.mu.Lock()
	token := s.refreshToken
	s.session = nil
	s.refreshToken = ""
	s.mu.Unlock()

	if err := os.Remove(s.tokenPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove session file", zap.Error(err))
	}

	var revokeErr error
	if token != "" {
		revokeErr = s.repo.InvalidateRefreshToken(ctx, token)
	}
	s.emit(models.AuthSignedOut, nil)
	return revokeErr
}

// GetSession returns the current session, restoring it from the persisted
// refresh token when the process has just started.
func (s *IdentityService) GetSession(ctx context.Context) (*models.Session, error) {
	s.mu.Lock()
	if s.session != nil {
		session := *s.session
		s.mu.Unlock()
		return &session, nil
	}
	s.mu.Unlock()

	token, err := s.readPersistedToken()
	if err != nil || token == "" {
		return nil, nil
	}

	userID, err := s.repo.ValidateRefreshToken(ctx, token)
	if err != nil {
		s.logger.Info("Persisted session no longer valid", zap.Error(err))
		if rmErr := os.Remove(s.tokenPath); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("Failed to remove stale session file", zap.Error(rmErr))
		}
		return nil, nil
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	session := sessionFor(user)
	s.mu.Lock()
	s.session = session
	s.refreshToken = token
	s.mu.Unlock()

	s.emit(models.AuthTokenRefreshed, session)
	copied := *session
	return &copied, nil
}

func (s *IdentityService) OnAuthStateChange(fn func(event models.AuthEvent, session *models.Session)) UnsubscribeFunc {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// AccessTokenFor mints a short-lived JWT for the HTTP layer.
func (s *IdentityService) AccessTokenFor(session *models.Session) (string, error) {
	if session == nil {
		return "", models.ErrNoSession
	}
	role := session.Metadata["role"]
	if role == "" {
		role = "member"
	}
	return GenerateAccessToken(session.UserID, session.Email, role, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
}

func (s *IdentityService) openSession(ctx context.Context, user *UserRecord) (*models.Session, error) {
	token, err := GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(s.cfg.RefreshTokenTTL)
	if err := s.repo.StoreRefreshToken(ctx, user.ID, token, expiresAt); err != nil {
		return nil, err
	}

	session := sessionFor(user)
	s.mu.Lock()
	s.session = session
	s.refreshToken = token
	s.mu.Unlock()

	s.writePersistedToken(token)

	copied := *session
	return &copied, nil
}

func (s *IdentityService) readPersistedToken() (string, error) {
	data, err := os.ReadFile(s.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var p persistedSession
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("Corrupt session file, discarding", zap.Error(err))
		return "", nil
	}
	return p.RefreshToken, nil
}

func (s *IdentityService) writePersistedToken(token string) {
	data, err := json.Marshal(persistedSession{RefreshToken: token})
	if err != nil {
		s.logger.Error("Failed to encode session file", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.tokenPath, data, 0o600); err != nil {
		s.logger.Error("Failed to write session file", zap.Error(err))
	}
}

func (s *IdentityService) emit(event models.AuthEvent, session *models.Session) {
	s.mu.Lock()
	fns := make([]func(models.AuthEvent, *models.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(event, session)
	}
}

func sessionFor(user *UserRecord) *models.Session {
	return &models.Session{
		UserID: user.ID,
		Email:  user.Email,
		Metadata: map[string]string{
			"name": user.Name,
			"role": user.Role,
		},
	}
}

func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
