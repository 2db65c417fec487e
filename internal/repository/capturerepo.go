package repository

import (
	"context"

	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/gofrs/uuid/v5"
)

// CaptureRepository persists shared captures with their collaborators and roster.
// It performs no authorization; callers resolve roles first.
type CaptureRepository interface {
	// Create inserts the capture row and its initial roster atomically; on any
	// error nothing is stored. ErrDuplicateID on id collision, ErrShareCodeTaken
	// on code collision, ErrConflict on a repeated student id.
	Create(ctx context.Context, c *model.Capture, roster []model.RosterEntry) error
	// Exists reports whether a capture with id exists.
	Exists(ctx context.Context, id string) (bool, error)
	// GetByID returns the capture or ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Capture, error)
	// GetByShareCode returns the capture or ErrNotFound.
	GetByShareCode(ctx context.Context, code string) (*model.Capture, error)
	// ListOwned returns captures owned by userID, newest first.
	ListOwned(ctx context.Context, userID uuid.UUID) ([]model.CaptureSummary, error)
	// ListShared returns captures userID collaborates on, newest first, with owner names.
	ListShared(ctx context.Context, userID uuid.UUID) ([]model.CaptureSummary, error)
	// Update applies the non-nil patch fields and bumps updated_at. Metadata
	// and a patched roster are written atomically.
	Update(ctx context.Context, id string, p model.CapturePatch) error
	// Delete removes roster, collaborators and the capture atomically.
	Delete(ctx context.Context, id string) error

	// CollaboratorRole returns the collaborator role of userID or ErrNotFound.
	CollaboratorRole(ctx context.Context, captureID string, userID uuid.UUID) (model.Role, error)
	// UpsertCollaborator inserts the row or updates its role.
	UpsertCollaborator(ctx context.Context, captureID string, userID uuid.UUID, role model.Role) error
	// RemoveCollaborator deletes the row; false when absent.
	RemoveCollaborator(ctx context.Context, captureID string, userID uuid.UUID) (bool, error)
	// Collaborators lists collaborator rows joined with user names.
	Collaborators(ctx context.Context, captureID string) ([]model.Collaborator, error)

	// ReplaceRoster deletes every roster row of the capture and inserts entries, atomically.
	ReplaceRoster(ctx context.Context, captureID string, entries []model.RosterEntry) error
	// Roster returns entries ordered by student name, case-insensitive.
	Roster(ctx context.Context, captureID string) ([]model.RosterEntry, error)
}
