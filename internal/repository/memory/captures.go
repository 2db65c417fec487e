package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// CaptureRepo implements CaptureRepository in memory.
type CaptureRepo struct{ s *Store }

// NewCaptureRepo constructs a shared capture repository over s.
func NewCaptureRepo(s *Store) *CaptureRepo { return &CaptureRepo{s: s} }

var _ repository.CaptureRepository = (*CaptureRepo)(nil)

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneCapture(c *model.Capture) model.Capture {
	out := *c
	out.Subject = cloneStr(c.Subject)
	out.Date = cloneStr(c.Date)
	out.StartTime = cloneStr(c.StartTime)
	out.EndTime = cloneStr(c.EndTime)
	return out
}

// Create inserts a capture with its roster under one lock.
func (r *CaptureRepo) Create(_ context.Context, c *model.Capture, roster []model.RosterEntry) error {
	entries, err := copyRoster(roster)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.captures[c.ID]; ok {
		return errs.ErrDuplicateID
	}
	for _, ex := range r.s.captures {
		if ex.ShareCode == c.ShareCode {
			return errs.ErrShareCodeTaken
		}
	}
	now := r.s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	stored := cloneCapture(c)
	r.s.captures[c.ID] = &stored
	r.s.captureOrder = append(r.s.captureOrder, c.ID)
	if len(entries) > 0 {
		r.s.roster[c.ID] = entries
	}
	return nil
}

// copyRoster clones entries, rejecting repeated student ids.
func copyRoster(entries []model.RosterEntry) ([]model.RosterEntry, error) {
	seen := make(map[string]struct{}, len(entries))
	out := make([]model.RosterEntry, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.StudentID]; dup {
			return nil, errs.ErrConflict
		}
		seen[e.StudentID] = struct{}{}
		e.TimeMarked = cloneStr(e.TimeMarked)
		out = append(out, e)
	}
	return out, nil
}

// Exists reports whether the id is taken.
func (r *CaptureRepo) Exists(_ context.Context, id string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.captures[id]
	return ok, nil
}

// GetByID loads a capture by id.
func (r *CaptureRepo) GetByID(_ context.Context, id string) (*model.Capture, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.captures[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := cloneCapture(c)
	return &out, nil
}

// GetByShareCode loads a capture by its share code.
func (r *CaptureRepo) GetByShareCode(_ context.Context, code string) (*model.Capture, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.captures {
		if c.ShareCode == code {
			out := cloneCapture(c)
			return &out, nil
		}
	}
	return nil, errs.ErrNotFound
}

// newestFirstLocked returns capture ids ordered by created_at DESC.
func (r *CaptureRepo) newestFirstLocked() []string {
	ids := make([]string, 0, len(r.s.captureOrder))
	for i := len(r.s.captureOrder) - 1; i >= 0; i-- {
		ids = append(ids, r.s.captureOrder[i])
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return r.s.captures[ids[i]].CreatedAt.After(r.s.captures[ids[j]].CreatedAt)
	})
	return ids
}

// ListOwned returns the user's own captures, newest first.
func (r *CaptureRepo) ListOwned(_ context.Context, userID uuid.UUID) ([]model.CaptureSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.CaptureSummary{}
	for _, id := range r.newestFirstLocked() {
		c := r.s.captures[id]
		if c.OwnerID == userID {
			out = append(out, model.CaptureSummary{Capture: cloneCapture(c), AccessType: model.RoleOwner})
		}
	}
	return out, nil
}

// ListShared returns captures the user collaborates on, newest first.
func (r *CaptureRepo) ListShared(_ context.Context, userID uuid.UUID) ([]model.CaptureSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.CaptureSummary{}
	for _, id := range r.newestFirstLocked() {
		c := r.s.captures[id]
		row, ok := r.s.collaborators[id][userID]
		if !ok || c.OwnerID == userID {
			continue
		}
		var ownerName string
		if u, ok := r.s.users[c.OwnerID]; ok {
			ownerName = u.Name
		}
		out = append(out, model.CaptureSummary{Capture: cloneCapture(c), AccessType: row.role, OwnerName: ownerName})
	}
	return out, nil
}

// Update applies provided metadata fields.
func (r *CaptureRepo) Update(_ context.Context, id string, p model.CapturePatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.captures[id]
	if !ok {
		return errs.ErrNotFound
	}
	if p.Empty() {
		return nil
	}
	var roster []model.RosterEntry
	if p.Roster != nil {
		var err error
		if roster, err = copyRoster(*p.Roster); err != nil {
			return err
		}
	}
	if p.Subject != nil {
		c.Subject = cloneStr(p.Subject)
	}
	if p.Date != nil {
		c.Date = cloneStr(p.Date)
	}
	if p.StartTime != nil {
		c.StartTime = cloneStr(p.StartTime)
	}
	if p.EndTime != nil {
		c.EndTime = cloneStr(p.EndTime)
	}
	if p.Roster != nil {
		r.s.roster[id] = roster
	}
	c.UpdatedAt = r.s.now()
	return nil
}

// Delete removes the capture and its children under one lock.
func (r *CaptureRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.captures[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.s.roster, id)
	delete(r.s.collaborators, id)
	delete(r.s.captures, id)
	for i, v := range r.s.captureOrder {
		if v == id {
			r.s.captureOrder = append(r.s.captureOrder[:i], r.s.captureOrder[i+1:]...)
			break
		}
	}
	return nil
}

// CollaboratorRole returns the stored role of a collaborator.
func (r *CaptureRepo) CollaboratorRole(_ context.Context, captureID string, userID uuid.UUID) (model.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.collaborators[captureID][userID]
	if !ok {
		return "", errs.ErrNotFound
	}
	return row.role, nil
}

// UpsertCollaborator inserts or re-roles a collaborator; joined_at is kept on update.
func (r *CaptureRepo) UpsertCollaborator(_ context.Context, captureID string, userID uuid.UUID, role model.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.captures[captureID]; !ok {
		return errs.ErrNotFound
	}
	rows := r.s.collaborators[captureID]
	if rows == nil {
		rows = map[uuid.UUID]collaboratorRow{}
		r.s.collaborators[captureID] = rows
	}
	row, ok := rows[userID]
	if !ok {
		row.joinedAt = r.s.now()
	}
	row.role = role
	rows[userID] = row
	return nil
}

// RemoveCollaborator deletes a collaborator row.
func (r *CaptureRepo) RemoveCollaborator(_ context.Context, captureID string, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.s.collaborators[captureID]
	if _, ok := rows[userID]; !ok {
		return false, nil
	}
	delete(rows, userID)
	return true, nil
}

// Collaborators lists collaborators with user names, oldest first.
func (r *CaptureRepo) Collaborators(_ context.Context, captureID string) ([]model.Collaborator, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Collaborator{}
	for uid, row := range r.s.collaborators[captureID] {
		c := model.Collaborator{UserID: uid, Role: row.role, JoinedAt: row.joinedAt}
		if u, ok := r.s.users[uid]; ok {
			c.Name, c.Email = u.Name, u.Email
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID.String() < out[j].UserID.String()
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

// ReplaceRoster swaps the whole roster under one lock.
func (r *CaptureRepo) ReplaceRoster(_ context.Context, captureID string, entries []model.RosterEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.captures[captureID]
	if !ok {
		return errs.ErrNotFound
	}
	stored, err := copyRoster(entries)
	if err != nil {
		return err
	}
	r.s.roster[captureID] = stored
	c.UpdatedAt = r.s.now()
	return nil
}

// Roster returns entries sorted by name, case-insensitive.
func (r *CaptureRepo) Roster(_ context.Context, captureID string) ([]model.RosterEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	src := r.s.roster[captureID]
	out := make([]model.RosterEntry, 0, len(src))
	for _, e := range src {
		e.TimeMarked = cloneStr(e.TimeMarked)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].StudentName), strings.ToLower(out[j].StudentName)
		if a == b {
			return out[i].StudentID < out[j].StudentID
		}
		return a < b
	})
	return out, nil
}
