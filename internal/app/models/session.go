package models

import "github.com/google/uuid"

// Session is the opaque authenticated-session shape handed out by the
// identity provider. Metadata carries provider-supplied extras such as the
// display name chosen at sign-up.
type Session struct {
	UserID   uuid.UUID         `json:"user_id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DisplayName resolves the user-facing name from session metadata, falling
// back to the local part of the email.
func (s *Session) DisplayName() string {
	if s == nil {
		return ""
	}
	if name, ok := s.Metadata["name"]; ok && name != "" {
		return name
	}
	for i, r := range s.Email {
		if r == '@' {
			return s.Email[:i]
		}
	}
	return s.Email
}

// AuthEvent is an identity-provider change notification kind.
type AuthEvent string

const (
	AuthSignedIn       AuthEvent = "SIGNED_IN"
	AuthSignedOut      AuthEvent = "SIGNED_OUT"
	AuthTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)
