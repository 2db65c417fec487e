package memory

import (
	"context"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
)

// VerificationRepo implements VerificationRepository in memory.
type VerificationRepo struct{ s *Store }

// NewVerificationRepo constructs a verification repository over s.
func NewVerificationRepo(s *Store) *VerificationRepo { return &VerificationRepo{s: s} }

var _ repository.VerificationRepository = (*VerificationRepo)(nil)

// Get returns the pending code for email.
func (r *VerificationRepo) Get(_ context.Context, email string) (*model.Verification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.verifications[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *v
	return &c, nil
}

// Put replaces the pending code for v.Email.
func (r *VerificationRepo) Put(_ context.Context, v *model.Verification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *v
	r.s.verifications[v.Email] = &c
	return nil
}

// IncAttempts bumps the attempt counter.
func (r *VerificationRepo) IncAttempts(_ context.Context, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.verifications[email]
	if !ok {
		return false, nil
	}
	v.Attempts++
	return true, nil
}

// Delete drops the pending code.
func (r *VerificationRepo) Delete(_ context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.verifications, email)
	return nil
}
