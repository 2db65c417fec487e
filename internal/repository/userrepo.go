// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserLookupFields lists the columns FindOneBy accepts.
var UserLookupFields = map[string]bool{
	"email":        true,
	"name":         true,
	"external_uid": true,
}

// UserRepository provides CRUD access for user accounts. Users are never deleted.
type UserRepository interface {
	// Create inserts a new user; ErrAlreadyExists if the email is registered.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by e-mail.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// FindOneBy loads the first user whose field equals value; field must be in UserLookupFields.
	FindOneBy(ctx context.Context, field, value string) (*model.User, error)
	// UpdatePassword replaces hash and salt of the user with the given e-mail.
	UpdatePassword(ctx context.Context, email string, pwdHash, salt []byte) error
	// UpdateProfile applies the non-nil patch fields and returns the updated user.
	UpdateProfile(ctx context.Context, id uuid.UUID, p model.ProfilePatch) (*model.User, error)
	// SetVerifiedByEmail marks the account as verified.
	SetVerifiedByEmail(ctx context.Context, email string) error
}
