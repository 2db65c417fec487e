package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
)

// SyncService stores personal capture sessions uploaded from the app.
type SyncService interface {
	// Upload upserts sessions atomically and returns how many were written.
	Upload(ctx context.Context, userID uuid.UUID, items []model.CaptureSession) (int, error)
	List(ctx context.Context, userID uuid.UUID) ([]model.CaptureSession, error)
	Delete(ctx context.Context, userID uuid.UUID, id string) error
}

type SyncServiceImpl struct {
	repo     repository.SyncRepository
	maxBatch int
}

// NewSyncService constructs SyncService with batch limits.
func NewSyncService(repo repository.SyncRepository, maxBatch int) *SyncServiceImpl {
	if maxBatch <= 0 {
		maxBatch = 1000
	}
	return &SyncServiceImpl{repo: repo, maxBatch: maxBatch}
}

var _ SyncService = (*SyncServiceImpl)(nil)

// Upload validates input and delegates the batch upsert to the repository.
// Items without an id get a fresh one.
func (s *SyncServiceImpl) Upload(ctx context.Context, userID uuid.UUID, items []model.CaptureSession) (int, error) {
	if userID == uuid.Nil {
		return 0, errs.ErrUnauthorized
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("%w: no captures provided", errs.ErrInvalidInput)
	}
	if len(items) > s.maxBatch {
		return 0, fmt.Errorf("%w: batch too large (%d > %d)", errs.ErrInvalidInput, len(items), s.maxBatch)
	}
	batch := make([]model.CaptureSession, len(items))
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" {
			id, err := uuid.NewV4()
			if err != nil {
				return 0, err
			}
			it.ID = id.String()
		}
		if seen[it.ID] {
			return 0, fmt.Errorf("%w: capture[%d] duplicate id %q", errs.ErrInvalidInput, i, it.ID)
		}
		seen[it.ID] = true
		it.UserID = userID
		batch[i] = it
	}
	return s.repo.UpsertBatch(ctx, userID, batch)
}

func (s *SyncServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.CaptureSession, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *SyncServiceImpl) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	if userID == uuid.Nil {
		return errs.ErrUnauthorized
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty id", errs.ErrInvalidInput)
	}
	return s.repo.Delete(ctx, userID, id)
}
