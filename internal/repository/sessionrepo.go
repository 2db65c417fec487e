package repository

import (
	"context"
	"time"

	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SessionRepository stores issued bearer tokens. It never purges on its own;
// callers compare ExpiresAt against the clock.
type SessionRepository interface {
	// Create inserts or replaces the session keyed by token.
	Create(ctx context.Context, s *model.Session) error
	// GetByToken returns the session or ErrNotFound.
	GetByToken(ctx context.Context, token string) (*model.Session, error)
	// SetExpiry moves expires_at; false when the token is unknown.
	SetExpiry(ctx context.Context, token string, expiresAt, now time.Time) (bool, error)
	// Delete removes one token; false when it did not exist.
	Delete(ctx context.Context, token string) (bool, error)
	// DeleteByUser revokes every session of the user and returns how many were removed.
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// DeleteExpired removes sessions with expires_at <= now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
