package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/ditrix/ditrix-server/internal/crypto"
	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 8

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NewUser is the input of CreateUser. Password may be empty only for external identities.
type NewUser struct {
	Email       string
	Password    string
	Name        string
	AvatarURL   string
	ExternalUID *string
}

// CredentialStore manages user accounts and their passwords.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindOneBy(ctx context.Context, field, value string) (*model.User, error)
	// CreateUser stores a salted hash and returns the public profile.
	CreateUser(ctx context.Context, in NewUser) (*model.Profile, error)
	// VerifyPassword returns the profile on match and nil otherwise; unknown
	// e-mail and wrong password are indistinguishable.
	VerifyPassword(ctx context.Context, email, password string) (*model.Profile, error)
	UpdatePasswordByEmail(ctx context.Context, email, password string) error
	// UpdateProfileByID returns nil when the patch carries nothing.
	UpdateProfileByID(ctx context.Context, id uuid.UUID, p model.ProfilePatch) (*model.Profile, error)
	SetVerifiedByEmail(ctx context.Context, email string) error
}

type CredentialStoreImpl struct {
	users repository.UserRepository
}

// NewCredentialStore wraps a user repository.
func NewCredentialStore(users repository.UserRepository) *CredentialStoreImpl {
	return &CredentialStoreImpl{users: users}
}

var _ CredentialStore = (*CredentialStoreImpl)(nil)

func (s *CredentialStoreImpl) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.users.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *CredentialStoreImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *CredentialStoreImpl) FindOneBy(ctx context.Context, field, value string) (*model.User, error) {
	if field == "email" {
		value = NormalizeEmail(value)
	}
	return s.users.FindOneBy(ctx, field, value)
}

// CreateUser validates input before touching storage.
func (s *CredentialStoreImpl) CreateUser(ctx context.Context, in NewUser) (*model.Profile, error) {
	email := NormalizeEmail(in.Email)
	if !emailRe.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email", errs.ErrInvalidInput)
	}
	external := in.ExternalUID != nil && *in.ExternalUID != ""
	if !external && len(in.Password) < MinPasswordLen {
		return nil, errs.ErrInvalidPassword
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:          uid,
		Email:       email,
		ExternalUID: in.ExternalUID,
		Name:        strings.TrimSpace(in.Name),
		AvatarURL:   in.AvatarURL,
	}
	if in.Password != "" {
		if u.PwdHash, u.SaltAuth, err = pkgcrypto.NewCredentials(in.Password); err != nil {
			return nil, err
		}
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

func (s *CredentialStoreImpl) VerifyPassword(ctx context.Context, email, password string) (*model.Profile, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		return nil, nil
	}
	return u.Profile(), nil
}

func (s *CredentialStoreImpl) UpdatePasswordByEmail(ctx context.Context, email, password string) error {
	if len(password) < MinPasswordLen {
		return errs.ErrInvalidPassword
	}
	hash, salt, err := pkgcrypto.NewCredentials(password)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, NormalizeEmail(email), hash, salt)
}

func (s *CredentialStoreImpl) UpdateProfileByID(ctx context.Context, id uuid.UUID, p model.ProfilePatch) (*model.Profile, error) {
	if p.Empty() {
		return nil, nil
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be blank", errs.ErrInvalidInput)
		}
		p.Name = &name
	}
	u, err := s.users.UpdateProfile(ctx, id, p)
	if err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

func (s *CredentialStoreImpl) SetVerifiedByEmail(ctx context.Context, email string) error {
	return s.users.SetVerifiedByEmail(ctx, NormalizeEmail(email))
}
