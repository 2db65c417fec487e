package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
)

// SessionRegistry issues bearer tokens and tracks their expiry.
type SessionRegistry interface {
	// Issue signs a new token for userID and persists its session.
	Issue(ctx context.Context, userID uuid.UUID) (model.Tokens, error)
	// Create upserts a session row keyed by token.
	Create(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error
	// Find returns the stored session, expired or not.
	Find(ctx context.Context, token string) (*model.Session, error)
	// Extend moves expiry to now+ttl; found is false for unknown tokens.
	Extend(ctx context.Context, token string, ttl time.Duration) (expiresAt time.Time, found bool, err error)
	Delete(ctx context.Context, token string) (bool, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// Authenticate resolves a bearer token to its user or ErrUnauthorized.
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
	// Cleanup drops sessions that already expired.
	Cleanup(ctx context.Context) (int64, error)
	// TTL is the lifetime of issued and refreshed sessions.
	TTL() time.Duration
}

type SessionRegistryImpl struct {
	repo    repository.SessionRepository
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewSessionRegistry constructs the registry. Tokens are HS256 JWTs carrying
// the user id; expiry lives on the session row so refresh needs no re-issue.
func NewSessionRegistry(repo repository.SessionRepository, signKey []byte, ttl time.Duration) *SessionRegistryImpl {
	return &SessionRegistryImpl{repo: repo, signKey: signKey, ttl: ttl, now: time.Now}
}

var _ SessionRegistry = (*SessionRegistryImpl)(nil)

func (s *SessionRegistryImpl) TTL() time.Duration { return s.ttl }

// signToken creates a signed HS256 JWT for the given subject.
func (s *SessionRegistryImpl) signToken(userID uuid.UUID, now time.Time) (string, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	claims := jwt.RegisteredClaims{
		Subject:  userID.String(),
		IssuedAt: jwt.NewNumericDate(now),
		ID:       jti.String(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
}

func (s *SessionRegistryImpl) Issue(ctx context.Context, userID uuid.UUID) (model.Tokens, error) {
	now := s.now()
	tok, err := s.signToken(userID, now)
	if err != nil {
		return model.Tokens{}, err
	}
	exp := now.Add(s.ttl)
	if err := s.Create(ctx, tok, userID, exp); err != nil {
		return model.Tokens{}, fmt.Errorf("persist session: %w", err)
	}
	return model.Tokens{AccessToken: tok, ExpiresAt: exp}, nil
}

func (s *SessionRegistryImpl) Create(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error {
	if token == "" || userID == uuid.Nil {
		return fmt.Errorf("%w: empty token/user", errs.ErrInvalidInput)
	}
	now := s.now()
	return s.repo.Create(ctx, &model.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	})
}

func (s *SessionRegistryImpl) Find(ctx context.Context, token string) (*model.Session, error) {
	return s.repo.GetByToken(ctx, token)
}

func (s *SessionRegistryImpl) Extend(ctx context.Context, token string, ttl time.Duration) (time.Time, bool, error) {
	now := s.now()
	exp := now.Add(ttl)
	ok, err := s.repo.SetExpiry(ctx, token, exp, now)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return exp, true, nil
}

func (s *SessionRegistryImpl) Delete(ctx context.Context, token string) (bool, error) {
	return s.repo.Delete(ctx, token)
}

func (s *SessionRegistryImpl) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.DeleteByUser(ctx, userID)
}

// Authenticate checks the signature, then the session row. Expired rows are
// removed on the way out.
func (s *SessionRegistryImpl) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, errs.ErrUnauthorized
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	sub, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, errs.ErrUnauthorized
	}

	sess, err := s.repo.GetByToken(ctx, token)
	if errors.Is(err, errs.ErrNotFound) {
		return uuid.Nil, errs.ErrUnauthorized
	}
	if err != nil {
		return uuid.Nil, err
	}
	if sess.Expired(s.now()) {
		_, _ = s.repo.Delete(ctx, token)
		return uuid.Nil, fmt.Errorf("%w: session expired", errs.ErrUnauthorized)
	}
	if sess.UserID != sub {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return sub, nil
}

func (s *SessionRegistryImpl) Cleanup(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

// RunJanitor calls Cleanup every interval until ctx is done.
func RunJanitor(ctx context.Context, reg SessionRegistry, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := reg.Cleanup(ctx)
			if err != nil {
				log.Warn("session cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}
