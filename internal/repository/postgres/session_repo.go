package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

var _ repository.SessionRepository = (*SessionRepo)(nil)

// Create upserts a session by token.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `
INSERT INTO sessions (token, user_id, created_at, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (token) DO UPDATE
SET user_id=EXCLUDED.user_id, updated_at=EXCLUDED.updated_at, expires_at=EXCLUDED.expires_at`
	_, err := r.db.Pool.Exec(ctx, q, s.Token, s.UserID, s.CreatedAt, s.UpdatedAt, s.ExpiresAt)
	return err
}

// GetByToken returns a session regardless of its expiry.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	const q = `SELECT token, user_id, created_at, updated_at, expires_at FROM sessions WHERE token=$1`
	var s model.Session
	err := r.db.Pool.QueryRow(ctx, q, token).Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// SetExpiry moves the expiry of an existing token.
func (r *SessionRepo) SetExpiry(ctx context.Context, token string, expiresAt, now time.Time) (bool, error) {
	const q = `UPDATE sessions SET expires_at=$2, updated_at=$3 WHERE token=$1`
	tag, err := r.db.Pool.Exec(ctx, q, token, expiresAt, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a single token.
func (r *SessionRepo) Delete(ctx context.Context, token string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE token=$1`, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByUser revokes all sessions of a user.
func (r *SessionRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired drops sessions whose expiry has passed.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
