package postgres

import (
	"context"
	"errors"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/jackc/pgx/v5"
)

// VerificationRepo implements VerificationRepository using PostgreSQL.
// email_verifications.email is unique, so Put replaces the pending code.
type VerificationRepo struct{ db *DB }

// NewVerificationRepo constructs a verification repository.
func NewVerificationRepo(db *DB) *VerificationRepo { return &VerificationRepo{db: db} }

var _ repository.VerificationRepository = (*VerificationRepo)(nil)

// Get returns the most recent code for email.
func (r *VerificationRepo) Get(ctx context.Context, email string) (*model.Verification, error) {
	const q = `
SELECT id, email, code, expires_at, attempts, created_at
FROM email_verifications
WHERE email=$1
ORDER BY created_at DESC
LIMIT 1`
	var v model.Verification
	err := r.db.Pool.QueryRow(ctx, q, email).Scan(&v.ID, &v.Email, &v.Code, &v.ExpiresAt, &v.Attempts, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Put stores v, resetting attempts of any previous code for the same e-mail.
func (r *VerificationRepo) Put(ctx context.Context, v *model.Verification) error {
	const q = `
INSERT INTO email_verifications (id, email, code, expires_at, attempts, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (email) DO UPDATE
SET id=EXCLUDED.id, code=EXCLUDED.code, expires_at=EXCLUDED.expires_at,
    attempts=EXCLUDED.attempts, created_at=EXCLUDED.created_at`
	_, err := r.db.Pool.Exec(ctx, q, v.ID, v.Email, v.Code, v.ExpiresAt, v.Attempts, v.CreatedAt)
	return err
}

// IncAttempts bumps the attempt counter of the pending code.
func (r *VerificationRepo) IncAttempts(ctx context.Context, email string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE email_verifications SET attempts=attempts+1 WHERE email=$1`, email)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete drops the pending code.
func (r *VerificationRepo) Delete(ctx context.Context, email string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM email_verifications WHERE email=$1`, email)
	return err
}
