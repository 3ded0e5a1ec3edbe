// Package auth implements the identity provider collaborator and the
// session lifecycle controller that drives re-synchronization on auth
// events.
package auth

import (
	"context"

	"github.com/roamly-app/roamly/internal/app/models"
)

// UnsubscribeFunc detaches an auth-state listener.
type UnsubscribeFunc func()

// Provider is the opaque session store contract. Every call is fallible and
// asynchronous; callers bound it with their own deadlines.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, name, email, password string) (*models.Session, error)
	SignInWithOtp(ctx context.Context, email string) error
	VerifyOtp(ctx context.Context, email, code string) (*models.Session, error)
	ResetPassword(ctx context.Context, email string) error
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*models.Session, error)
	OnAuthStateChange(fn func(event models.AuthEvent, session *models.Session)) UnsubscribeFunc
}

// ResolveProfile maps an authenticated session to the normalized profile
// shape. It has no state of its own; preference fields are filled in by the
// sync engine from cache or remote.
func ResolveProfile(session *models.Session) models.UserProfile {
	if session == nil {
		return models.UserProfile{}
	}
	return models.UserProfile{
		ID:    session.UserID.String(),
		Name:  session.DisplayName(),
		Email: session.Email,
	}
}
