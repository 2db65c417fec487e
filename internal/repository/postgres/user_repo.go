package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, pwd_hash, salt_auth, external_uid, name, avatar_url, verified, created_at, updated_at`

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

var _ repository.UserRepository = (*UserRepo)(nil)

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, email, pwd_hash, salt_auth, external_uid, name, avatar_url, verified)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q,
		u.ID, u.Email, u.PwdHash, u.SaltAuth, u.ExternalUID, u.Name, u.AvatarURL, u.Verified,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PwdHash, &u.SaltAuth, &u.ExternalUID,
		&u.Name, &u.AvatarURL, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmail selects a user by e-mail.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, email))
}

// FindOneBy selects the first user matching an allow-listed column.
func (r *UserRepo) FindOneBy(ctx context.Context, field, value string) (*model.User, error) {
	if !repository.UserLookupFields[field] {
		return nil, fmt.Errorf("%w: lookup field %q", errs.ErrInvalidInput, field)
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + field + `=$1 ORDER BY created_at LIMIT 1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, value))
}

// UpdatePassword replaces the password hash and salt by e-mail.
func (r *UserRepo) UpdatePassword(ctx context.Context, email string, pwdHash, salt []byte) error {
	const q = `UPDATE users SET pwd_hash=$2, salt_auth=$3, updated_at=now() WHERE email=$1`
	tag, err := r.db.Pool.Exec(ctx, q, email, pwdHash, salt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

// UpdateProfile applies only the provided fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, p model.ProfilePatch) (*model.User, error) {
	if p.Empty() {
		return r.GetByID(ctx, id)
	}
	sets := make([]string, 0, 3)
	args := []any{id}
	if p.Name != nil {
		args = append(args, *p.Name)
		sets = append(sets, fmt.Sprintf("name=$%d", len(args)))
	}
	if p.AvatarURL != nil {
		args = append(args, *p.AvatarURL)
		sets = append(sets, fmt.Sprintf("avatar_url=$%d", len(args)))
	}
	sets = append(sets, "updated_at=now()")
	q := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id=$1 RETURNING ` + userColumns
	return scanUser(r.db.Pool.QueryRow(ctx, q, args...))
}

// SetVerifiedByEmail flips the verified flag.
func (r *UserRepo) SetVerifiedByEmail(ctx context.Context, email string) error {
	const q = `UPDATE users SET verified=true, updated_at=now() WHERE email=$1`
	tag, err := r.db.Pool.Exec(ctx, q, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}
