package memory

import (
	"context"
	"time"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// SessionRepo implements SessionRepository in memory.
type SessionRepo struct{ s *Store }

// NewSessionRepo constructs a session repository over s.
func NewSessionRepo(s *Store) *SessionRepo { return &SessionRepo{s: s} }

var _ repository.SessionRepository = (*SessionRepo)(nil)

// Create upserts a session by token.
func (r *SessionRepo) Create(_ context.Context, sess *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *sess
	if ex, ok := r.s.sessions[sess.Token]; ok {
		c.CreatedAt = ex.CreatedAt
	}
	r.s.sessions[sess.Token] = &c
	return nil
}

// GetByToken returns a session regardless of expiry.
func (r *SessionRepo) GetByToken(_ context.Context, token string) (*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[token]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *sess
	return &c, nil
}

// SetExpiry moves the expiry of an existing token.
func (r *SessionRepo) SetExpiry(_ context.Context, token string, expiresAt, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[token]
	if !ok {
		return false, nil
	}
	sess.ExpiresAt = expiresAt
	sess.UpdatedAt = now
	return true, nil
}

// Delete removes one token.
func (r *SessionRepo) Delete(_ context.Context, token string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.sessions[token]
	delete(r.s.sessions, token)
	return ok, nil
}

// DeleteByUser revokes all sessions of a user.
func (r *SessionRepo) DeleteByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for tok, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, tok)
			n++
		}
	}
	return n, nil
}

// DeleteExpired drops sessions whose expiry has passed.
func (r *SessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for tok, sess := range r.s.sessions {
		if sess.Expired(now) {
			delete(r.s.sessions, tok)
			n++
		}
	}
	return n, nil
}
