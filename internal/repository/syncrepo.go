package repository

import (
	"context"

	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SyncRepository stores personal capture sessions uploaded by the app.
type SyncRepository interface {
	// UpsertBatch inserts or updates sessions keyed by id, all-or-nothing.
	// ErrForbidden if an id already belongs to another user.
	UpsertBatch(ctx context.Context, userID uuid.UUID, items []model.CaptureSession) (int, error)
	// ListByUser returns the user's sessions, latest date and start time first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CaptureSession, error)
	// Delete removes one of the user's sessions; ErrNotFound when absent.
	Delete(ctx context.Context, userID uuid.UUID, id string) error
}
