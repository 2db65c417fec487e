// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects an issued bearer token and its session expiry.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID          uuid.UUID // PK
	Email       string    // unique
	PwdHash     []byte    // Argon2id(password, SaltAuth); empty for external identities
	SaltAuth    []byte    // per-user auth salt
	ExternalUID *string   // identity-provider uid, unique when set
	Name        string
	AvatarURL   string
	Verified    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profile is the public view of a user: no credentials.
type Profile struct {
	ID        uuid.UUID
	Email     string
	Name      string
	AvatarURL string
	Verified  bool
	CreatedAt time.Time
}

// Profile strips credentials from the user.
func (u *User) Profile() *Profile {
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}

// ProfilePatch carries a partial profile update; nil fields are left untouched.
type ProfilePatch struct {
	Name      *string
	AvatarURL *string
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool { return p.Name == nil && p.AvatarURL == nil }

// Session is an issued bearer token bound to a user.
type Session struct {
	Token     string // PK
	UserID    uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time // zero value counts as expired
}

// Expired reports whether the session must be treated as absent at now.
func (s *Session) Expired(now time.Time) bool { return !s.ExpiresAt.After(now) }

// Verification is a one-time code for e-mail confirmation or password reset.
type Verification struct {
	ID        uuid.UUID
	Email     string
	Code      string
	ExpiresAt time.Time
	Attempts  int
	CreatedAt time.Time
}

// Expired reports whether the code can no longer be used at now.
func (v *Verification) Expired(now time.Time) bool { return !v.ExpiresAt.After(now) }
