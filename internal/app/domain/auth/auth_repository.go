package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/domain/remote"
	"github.com/roamly-app/roamly/internal/app/models"
)

var _ Repo = (*PostgresRepo)(nil)

// UserRecord is the users table row needed for credential checks.
type UserRecord struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

// Repo is the persistence contract behind the identity provider.
type Repo interface {
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*UserRecord, error)
	CreateUser(ctx context.Context, name, email, passwordHash string) (uuid.UUID, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error

	StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	ValidateRefreshToken(ctx context.Context, token string) (uuid.UUID, error)
	InvalidateRefreshToken(ctx context.Context, token string) error

	// One-time tokens back both OTP sign-in and password reset links.
	StoreOneTimeToken(ctx context.Context, userID uuid.UUID, purpose, code string, expiresAt time.Time) error
	ConsumeOneTimeToken(ctx context.Context, purpose, code string) (uuid.UUID, error)
}

type PostgresRepo struct {
	logger *zap.Logger
	db     remote.DB
}

func NewPostgresRepo(db remote.DB, logger *zap.Logger) *PostgresRepo {
	return &PostgresRepo{
		logger: logger,
		db:     db,
	}
}

func (r *PostgresRepo) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	var user UserRecord
	query := `SELECT id, name, email, password_hash, role FROM users WHERE email = $1 AND is_active = TRUE`
	err := r.db.QueryRow(ctx, query, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user with email %s not found: %w", email, models.ErrNotFound)
		}
		r.logger.Error("Failed to fetch user by email", zap.Error(err))
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return &user, nil
}

func (r *PostgresRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*UserRecord, error) {
	var user UserRecord
	query := `SELECT id, name, email, password_hash, role FROM users WHERE id = $1 AND is_active = TRUE`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s not found: %w", userID, models.ErrNotFound)
		}
		r.logger.Error("Failed to fetch user by id", zap.Error(err))
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return &user, nil
}

func (r *PostgresRepo) CreateUser(ctx context.Context, name, email, passwordHash string) (uuid.UUID, error) {
	id := uuid.New()
	query := `
        INSERT INTO users (id, name, email, password_hash, role, is_active, created_at)
        VALUES ($1, $2, $3, $4, 'member', TRUE, NOW())
    `
	if _, err := r.db.Exec(ctx, query, id, name, email, passwordHash); err != nil {
		r.logger.Error("Failed to create user", zap.String("email", email), zap.Error(err))
		return uuid.Nil, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

func (r *PostgresRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, newPasswordHash, userID)
	if err != nil {
		r.logger.Error("Failed to update password", zap.Error(err))
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no user with id %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepo) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	query := `
        INSERT INTO refresh_tokens (user_id, token, expires_at, created_at)
        VALUES ($1, $2, $3, NOW())
    `
	if _, err := r.db.Exec(ctx, query, userID, token, expiresAt); err != nil {
		r.logger.Error("Failed to store refresh token", zap.Error(err))
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ValidateRefreshToken(ctx context.Context, token string) (uuid.UUID, error) {
	var userID uuid.UUID
	query := `
        SELECT user_id FROM refresh_tokens
        WHERE token = $1 AND revoked_at IS NULL AND expires_at > NOW()
    `
	err := r.db.QueryRow(ctx, query, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("refresh token invalid or expired: %w", models.ErrUnauthenticated)
		}
		return uuid.Nil, fmt.Errorf("database error validating refresh token: %w", err)
	}
	return userID, nil
}

func (r *PostgresRepo) InvalidateRefreshToken(ctx context.Context, token string) error {
	query := `UPDATE refresh_tokens SET revoked_at = NOW() WHERE token = $1 AND revoked_at IS NULL`
	if _, err := r.db.Exec(ctx, query, token); err != nil {
		r.logger.Error("Failed to invalidate refresh token", zap.Error(err))
		return fmt.Errorf("failed to invalidate refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRepo) StoreOneTimeToken(ctx context.Context, userID uuid.UUID, purpose, code string, expiresAt time.Time) error {
	query := `
        INSERT INTO one_time_tokens (user_id, purpose, code, expires_at, created_at)
        VALUES ($1, $2, $3, $4, NOW())
    `
	if _, err := r.db.Exec(ctx, query, userID, purpose, code, expiresAt); err != nil {
		r.logger.Error("Failed to store one-time token", zap.String("purpose", purpose), zap.Error(err))
		return fmt.Errorf("failed to store one-time token: %w", err)
	}
	return nil
}

// ConsumeOneTimeToken validates and burns a code in one statement so it can
// never be used twice.
func (r *PostgresRepo) ConsumeOneTimeToken(ctx context.Context, purpose, code string) (uuid.UUID, error) {
	var userID uuid.UUID
	query := `
        UPDATE one_time_tokens SET used_at = NOW()
        WHERE purpose = $1 AND code = $2 AND used_at IS NULL AND expires_at > NOW()
        RETURNING user_id
    `
	err := r.db.QueryRow(ctx, query, purpose, code).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("code invalid, expired or already used: %w", models.ErrUnauthenticated)
		}
		return uuid.Nil, fmt.Errorf("database error consuming one-time token: %w", err)
	}
	return userID, nil
}
