package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// SyncRepo implements SyncRepository in memory.
type SyncRepo struct{ s *Store }

// NewSyncRepo constructs a capture-session repository over s.
func NewSyncRepo(s *Store) *SyncRepo { return &SyncRepo{s: s} }

var _ repository.SyncRepository = (*SyncRepo)(nil)

// UpsertBatch validates ownership of every id before writing any of them.
func (r *SyncRepo) UpsertBatch(_ context.Context, userID uuid.UUID, items []model.CaptureSession) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, it := range items {
		if ex, ok := r.s.syncs[it.ID]; ok && ex.UserID != userID {
			return 0, fmt.Errorf("session[%d]: %w", i, errs.ErrForbidden)
		}
	}
	now := r.s.now()
	for _, it := range items {
		c := it
		c.UserID = userID
		c.Subject, c.Date = cloneStr(it.Subject), cloneStr(it.Date)
		c.StartTime, c.EndTime = cloneStr(it.StartTime), cloneStr(it.EndTime)
		c.UpdatedAt = now
		if ex, ok := r.s.syncs[it.ID]; ok {
			c.CreatedAt = ex.CreatedAt
		} else {
			c.CreatedAt = now
			r.s.syncOrder = append(r.s.syncOrder, it.ID)
		}
		r.s.syncs[it.ID] = &c
	}
	return len(items), nil
}

// ListByUser returns the user's sessions, latest date and start time first.
func (r *SyncRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.CaptureSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.CaptureSession{}
	for i := len(r.s.syncOrder) - 1; i >= 0; i-- {
		if it := r.s.syncs[r.s.syncOrder[i]]; it.UserID == userID {
			out = append(out, *it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := descNullsLast(out[i].Date, out[j].Date); c != 0 {
			return c < 0
		}
		return descNullsLast(out[i].StartTime, out[j].StartTime) < 0
	})
	return out, nil
}

// descNullsLast orders a before b (-1) when a is the larger value; nil sorts last.
func descNullsLast(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *a < *b:
		return 1
	}
	return 0
}

// Delete removes one of the user's sessions.
func (r *SyncRepo) Delete(_ context.Context, userID uuid.UUID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.syncs[id]
	if !ok || it.UserID != userID {
		return errs.ErrNotFound
	}
	delete(r.s.syncs, id)
	for i, v := range r.s.syncOrder {
		if v == id {
			r.s.syncOrder = append(r.s.syncOrder[:i], r.s.syncOrder[i+1:]...)
			break
		}
	}
	return nil
}
