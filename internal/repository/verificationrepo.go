package repository

import (
	"context"

	"github.com/ditrix/ditrix-server/internal/model"
)

// VerificationRepository keeps at most one pending code per e-mail.
type VerificationRepository interface {
	// Get returns the latest code for email or ErrNotFound.
	Get(ctx context.Context, email string) (*model.Verification, error)
	// Put stores v, replacing any code already held for v.Email.
	Put(ctx context.Context, v *model.Verification) error
	// IncAttempts bumps the attempt counter; false when no code exists.
	IncAttempts(ctx context.Context, email string) (bool, error)
	// Delete drops the code for email. Missing codes are not an error.
	Delete(ctx context.Context, email string) error
}
