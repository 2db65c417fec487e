package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/storage"
)

// ProfileUpdate is a partial profile change. Avatar is a URL, a data URI or
// bare base64 image.
type ProfileUpdate struct {
	Name   *string
	Avatar *string
}

// ProfileService reads and edits the caller's own profile.
type ProfileService interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	Update(ctx context.Context, userID uuid.UUID, u ProfileUpdate) (*model.Profile, error)
}

type ProfileServiceImpl struct {
	creds   CredentialStore
	avatars storage.AvatarStore // nil stores avatar values as given
}

// NewProfileService constructs ProfileService; avatars may be nil.
func NewProfileService(creds CredentialStore, avatars storage.AvatarStore) *ProfileServiceImpl {
	return &ProfileServiceImpl{creds: creds, avatars: avatars}
}

var _ ProfileService = (*ProfileServiceImpl)(nil)

func (s *ProfileServiceImpl) Get(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	u, err := s.creds.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

func isURL(v string) bool {
	return strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "http://")
}

// Update uploads inline avatars when an avatar store is configured.
func (s *ProfileServiceImpl) Update(ctx context.Context, userID uuid.UUID, u ProfileUpdate) (*model.Profile, error) {
	patch := model.ProfilePatch{Name: u.Name}
	if u.Avatar != nil {
		v := strings.TrimSpace(*u.Avatar)
		if v != "" && !isURL(v) && s.avatars != nil {
			data, ct, err := storage.DecodeImage(v)
			if err != nil {
				return nil, err
			}
			if v, err = s.avatars.PutAvatar(ctx, userID, data, ct); err != nil {
				return nil, err
			}
		}
		patch.AvatarURL = &v
	}
	p, err := s.creds.UpdateProfileByID(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: nothing to update", errs.ErrInvalidInput)
	}
	return p, nil
}
