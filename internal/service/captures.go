package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/ditrix/ditrix-server/internal/crypto"
	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
)

const shareCodeAttempts = 5

// CaptureService is the shared-capture core. Every call resolves the
// caller's role afresh before reading or mutating.
type CaptureService interface {
	// HasAccess resolves the caller's role; a missing capture means no access.
	HasAccess(ctx context.Context, userID uuid.UUID, captureID string) (model.Access, error)
	Create(ctx context.Context, userID uuid.UUID, in model.NewCapture) (*model.Capture, error)
	List(ctx context.Context, userID uuid.UUID) (*model.CaptureList, error)
	Get(ctx context.Context, userID uuid.UUID, captureID string) (*model.CaptureDetail, error)
	Update(ctx context.Context, userID uuid.UUID, captureID string, p model.CapturePatch) (*model.CaptureDetail, error)
	ReplaceRoster(ctx context.Context, userID uuid.UUID, captureID string, entries []model.RosterEntry) ([]model.RosterEntry, error)
	Delete(ctx context.Context, userID uuid.UUID, captureID string) error
	AddCollaborator(ctx context.Context, userID uuid.UUID, captureID, email string, role model.Role) (*model.Collaborator, error)
	RemoveCollaborator(ctx context.Context, userID uuid.UUID, captureID string, collaboratorID uuid.UUID) error
	Collaborators(ctx context.Context, userID uuid.UUID, captureID string) ([]model.Collaborator, error)
	// JoinByCode grants viewer access; already is true when the caller had access.
	JoinByCode(ctx context.Context, userID uuid.UUID, code string) (captureID string, already bool, err error)
}

type CaptureServiceImpl struct {
	captures     repository.CaptureRepository
	users        repository.UserRepository
	newShareCode func() (string, error)
}

// NewCaptureService constructs the capture service.
func NewCaptureService(captures repository.CaptureRepository, users repository.UserRepository) *CaptureServiceImpl {
	return &CaptureServiceImpl{captures: captures, users: users, newShareCode: pkgcrypto.ShareCode}
}

var _ CaptureService = (*CaptureServiceImpl)(nil)

func (s *CaptureServiceImpl) HasAccess(ctx context.Context, userID uuid.UUID, captureID string) (model.Access, error) {
	c, err := s.captures.GetByID(ctx, captureID)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Access{}, nil
	}
	if err != nil {
		return model.Access{}, err
	}
	if c.OwnerID == userID {
		return model.Access{Granted: true, Role: model.RoleOwner}, nil
	}
	role, err := s.captures.CollaboratorRole(ctx, captureID, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Access{}, nil
	}
	if err != nil {
		return model.Access{}, err
	}
	return model.Access{Granted: true, Role: role}, nil
}

// authorize returns the caller's access when allowed accepts its role.
func (s *CaptureServiceImpl) authorize(ctx context.Context, userID uuid.UUID, captureID string, allowed func(model.Role) bool, deny string) (model.Access, error) {
	acc, err := s.HasAccess(ctx, userID, captureID)
	if err != nil {
		return model.Access{}, err
	}
	if !acc.Granted {
		return model.Access{}, errs.ErrForbidden
	}
	if allowed != nil && !allowed(acc.Role) {
		return model.Access{}, fmt.Errorf("%w: %s", errs.ErrForbidden, deny)
	}
	return acc, nil
}

func ownerOnly(r model.Role) bool { return r == model.RoleOwner }

// normalizeRoster validates student ids and fills the default status.
func normalizeRoster(entries []model.RosterEntry) ([]model.RosterEntry, error) {
	out := make([]model.RosterEntry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		e.StudentID = strings.TrimSpace(e.StudentID)
		if e.StudentID == "" {
			return nil, fmt.Errorf("%w: roster[%d] empty student id", errs.ErrInvalidInput, i)
		}
		if seen[e.StudentID] {
			return nil, fmt.Errorf("%w: roster[%d] duplicate student id %q", errs.ErrInvalidInput, i, e.StudentID)
		}
		seen[e.StudentID] = true
		if e.Status == "" {
			e.Status = model.DefaultRosterStatus
		}
		out = append(out, e)
	}
	return out, nil
}

// Create rejects a known id instead of overwriting it. Share codes are
// redrawn on collision.
func (s *CaptureServiceImpl) Create(ctx context.Context, userID uuid.UUID, in model.NewCapture) (*model.Capture, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	roster, err := normalizeRoster(in.Roster)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		u, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		id = u.String()
	} else {
		exists, err := s.captures.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, errs.ErrDuplicateID
		}
	}

	c := &model.Capture{
		ID:        id,
		OwnerID:   userID,
		Subject:   in.Subject,
		Date:      in.Date,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	}
	for attempt := 1; ; attempt++ {
		if c.ShareCode, err = s.newShareCode(); err != nil {
			return nil, err
		}
		err = s.captures.Create(ctx, c, roster)
		if !errors.Is(err, errs.ErrShareCodeTaken) || attempt == shareCodeAttempts {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CaptureServiceImpl) List(ctx context.Context, userID uuid.UUID) (*model.CaptureList, error) {
	owned, err := s.captures.ListOwned(ctx, userID)
	if err != nil {
		return nil, err
	}
	shared, err := s.captures.ListShared(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.CaptureList{Owned: owned, Shared: shared}, nil
}

func (s *CaptureServiceImpl) detail(ctx context.Context, captureID string, role model.Role) (*model.CaptureDetail, error) {
	c, err := s.captures.GetByID(ctx, captureID)
	if err != nil {
		return nil, err
	}
	roster, err := s.captures.Roster(ctx, captureID)
	if err != nil {
		return nil, err
	}
	collabs, err := s.captures.Collaborators(ctx, captureID)
	if err != nil {
		return nil, err
	}
	return &model.CaptureDetail{Capture: *c, Role: role, Roster: roster, Collaborators: collabs}, nil
}

func (s *CaptureServiceImpl) Get(ctx context.Context, userID uuid.UUID, captureID string) (*model.CaptureDetail, error) {
	acc, err := s.authorize(ctx, userID, captureID, nil, "")
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, captureID, acc.Role)
}

// Update applies metadata and an optional full roster under one role check.
func (s *CaptureServiceImpl) Update(ctx context.Context, userID uuid.UUID, captureID string, p model.CapturePatch) (*model.CaptureDetail, error) {
	if p.Roster != nil {
		roster, err := normalizeRoster(*p.Roster)
		if err != nil {
			return nil, err
		}
		p.Roster = &roster
	}
	acc, err := s.authorize(ctx, userID, captureID, model.Role.CanEdit, "viewers cannot edit")
	if err != nil {
		return nil, err
	}
	if err := s.captures.Update(ctx, captureID, p); err != nil {
		return nil, err
	}
	return s.detail(ctx, captureID, acc.Role)
}

// ReplaceRoster swaps the full roster; an empty slice clears it.
func (s *CaptureServiceImpl) ReplaceRoster(ctx context.Context, userID uuid.UUID, captureID string, entries []model.RosterEntry) ([]model.RosterEntry, error) {
	roster, err := normalizeRoster(entries)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, userID, captureID, model.Role.CanEdit, "viewers cannot edit"); err != nil {
		return nil, err
	}
	if err := s.captures.ReplaceRoster(ctx, captureID, roster); err != nil {
		return nil, err
	}
	return s.captures.Roster(ctx, captureID)
}

func (s *CaptureServiceImpl) Delete(ctx context.Context, userID uuid.UUID, captureID string) error {
	if _, err := s.authorize(ctx, userID, captureID, ownerOnly, "only owner can delete"); err != nil {
		return err
	}
	return s.captures.Delete(ctx, captureID)
}

// AddCollaborator invites the user registered under email. Owners and
// editors may invite; re-inviting changes the role.
func (s *CaptureServiceImpl) AddCollaborator(ctx context.Context, userID uuid.UUID, captureID, email string, role model.Role) (*model.Collaborator, error) {
	if role == "" {
		role = model.RoleViewer
	}
	if !role.Collaborative() {
		return nil, fmt.Errorf("%w: role must be editor or viewer", errs.ErrInvalidInput)
	}
	if NormalizeEmail(email) == "" {
		return nil, fmt.Errorf("%w: email required", errs.ErrInvalidInput)
	}
	if _, err := s.authorize(ctx, userID, captureID, model.Role.CanEdit, "only owner or editor can add collaborators"); err != nil {
		return nil, err
	}
	target, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	c, err := s.captures.GetByID(ctx, captureID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID == target.ID {
		return nil, fmt.Errorf("%w: owner cannot be a collaborator", errs.ErrInvalidInput)
	}
	if err := s.captures.UpsertCollaborator(ctx, captureID, target.ID, role); err != nil {
		return nil, err
	}
	return &model.Collaborator{UserID: target.ID, Name: target.Name, Email: target.Email, Role: role}, nil
}

func (s *CaptureServiceImpl) RemoveCollaborator(ctx context.Context, userID uuid.UUID, captureID string, collaboratorID uuid.UUID) error {
	if _, err := s.authorize(ctx, userID, captureID, ownerOnly, "only owner can remove collaborators"); err != nil {
		return err
	}
	ok, err := s.captures.RemoveCollaborator(ctx, captureID, collaboratorID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("collaborator %w", errs.ErrNotFound)
	}
	return nil
}

func (s *CaptureServiceImpl) Collaborators(ctx context.Context, userID uuid.UUID, captureID string) ([]model.Collaborator, error) {
	if _, err := s.authorize(ctx, userID, captureID, nil, ""); err != nil {
		return nil, err
	}
	return s.captures.Collaborators(ctx, captureID)
}

func (s *CaptureServiceImpl) JoinByCode(ctx context.Context, userID uuid.UUID, code string) (string, bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", false, fmt.Errorf("%w: share code required", errs.ErrInvalidInput)
	}
	c, err := s.captures.GetByShareCode(ctx, code)
	if err != nil {
		return "", false, err
	}
	acc, err := s.HasAccess(ctx, userID, c.ID)
	if err != nil {
		return "", false, err
	}
	if acc.Granted {
		return c.ID, true, nil
	}
	if err := s.captures.UpsertCollaborator(ctx, c.ID, userID, model.RoleViewer); err != nil {
		return "", false, err
	}
	return c.ID, false, nil
}
