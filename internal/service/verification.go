package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
)

// VerificationStore keeps the pending one-time code of each e-mail.
// It applies no lockout; callers decide what attempts mean.
type VerificationStore interface {
	Get(ctx context.Context, email string) (*model.Verification, error)
	// Upsert keeps an unexpired code unless force is set; it returns the code in effect.
	Upsert(ctx context.Context, email, code string, expiresAt time.Time, force bool) (*model.Verification, error)
	IncAttempts(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, email string) error
}

type VerificationStoreImpl struct {
	repo repository.VerificationRepository
	now  func() time.Time
}

// NewVerificationStore wraps a verification repository.
func NewVerificationStore(repo repository.VerificationRepository) *VerificationStoreImpl {
	return &VerificationStoreImpl{repo: repo, now: time.Now}
}

var _ VerificationStore = (*VerificationStoreImpl)(nil)

func (s *VerificationStoreImpl) Get(ctx context.Context, email string) (*model.Verification, error) {
	return s.repo.Get(ctx, NormalizeEmail(email))
}

func (s *VerificationStoreImpl) Upsert(ctx context.Context, email, code string, expiresAt time.Time, force bool) (*model.Verification, error) {
	email = NormalizeEmail(email)
	if email == "" || code == "" {
		return nil, fmt.Errorf("%w: empty email/code", errs.ErrInvalidInput)
	}
	now := s.now()
	if !force {
		cur, err := s.repo.Get(ctx, email)
		switch {
		case err == nil && !cur.Expired(now):
			return cur, nil
		case err != nil && !errors.Is(err, errs.ErrNotFound):
			return nil, err
		}
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	v := &model.Verification{ID: id, Email: email, Code: code, ExpiresAt: expiresAt, CreatedAt: now}
	if err := s.repo.Put(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *VerificationStoreImpl) IncAttempts(ctx context.Context, email string) (bool, error) {
	return s.repo.IncAttempts(ctx, NormalizeEmail(email))
}

func (s *VerificationStoreImpl) Delete(ctx context.Context, email string) error {
	return s.repo.Delete(ctx, NormalizeEmail(email))
}
