package memory

import (
	"context"
	"fmt"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// UserRepo implements UserRepository in memory.
type UserRepo struct{ s *Store }

// NewUserRepo constructs a user repository over s.
func NewUserRepo(s *Store) *UserRepo { return &UserRepo{s: s} }

var _ repository.UserRepository = (*UserRepo)(nil)

func cloneUser(u *model.User) *model.User {
	c := *u
	c.PwdHash = append([]byte(nil), u.PwdHash...)
	c.SaltAuth = append([]byte(nil), u.SaltAuth...)
	if u.ExternalUID != nil {
		v := *u.ExternalUID
		c.ExternalUID = &v
	}
	return &c
}

// Create inserts a user; email and external uid are unique.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ex := range r.s.users {
		if ex.Email == u.Email || ex.ID == u.ID {
			return errs.ErrAlreadyExists
		}
		if u.ExternalUID != nil && ex.ExternalUID != nil && *ex.ExternalUID == *u.ExternalUID {
			return errs.ErrAlreadyExists
		}
	}
	now := r.s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = cloneUser(u)
	return nil
}

// GetByID loads a user by ID.
func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepo) byEmailLocked(email string) *model.User {
	for _, u := range r.s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

// GetByEmail loads a user by e-mail.
func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if u := r.byEmailLocked(email); u != nil {
		return cloneUser(u), nil
	}
	return nil, errs.ErrUserNotFound
}

// FindOneBy returns the oldest user whose field equals value.
func (r *UserRepo) FindOneBy(_ context.Context, field, value string) (*model.User, error) {
	if !repository.UserLookupFields[field] {
		return nil, fmt.Errorf("%w: lookup field %q", errs.ErrInvalidInput, field)
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *model.User
	for _, u := range r.s.users {
		var v string
		switch field {
		case "email":
			v = u.Email
		case "name":
			v = u.Name
		case "external_uid":
			if u.ExternalUID == nil {
				continue
			}
			v = *u.ExternalUID
		}
		if v == value && (found == nil || u.CreatedAt.Before(found.CreatedAt)) {
			found = u
		}
	}
	if found == nil {
		return nil, errs.ErrUserNotFound
	}
	return cloneUser(found), nil
}

// UpdatePassword replaces hash and salt by e-mail.
func (r *UserRepo) UpdatePassword(_ context.Context, email string, pwdHash, salt []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.byEmailLocked(email)
	if u == nil {
		return errs.ErrUserNotFound
	}
	u.PwdHash = append([]byte(nil), pwdHash...)
	u.SaltAuth = append([]byte(nil), salt...)
	u.UpdatedAt = r.s.now()
	return nil
}

// UpdateProfile applies only provided fields.
func (r *UserRepo) UpdateProfile(_ context.Context, id uuid.UUID, p model.ProfilePatch) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	if p.Empty() {
		return cloneUser(u), nil
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	u.UpdatedAt = r.s.now()
	return cloneUser(u), nil
}

// SetVerifiedByEmail marks the account as verified.
func (r *UserRepo) SetVerifiedByEmail(_ context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := r.byEmailLocked(email)
	if u == nil {
		return errs.ErrUserNotFound
	}
	u.Verified = true
	u.UpdatedAt = r.s.now()
	return nil
}
