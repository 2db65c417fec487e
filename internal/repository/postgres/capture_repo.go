package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

const (
	captureColumns = `id, owner_id, share_code, subject, date, start_time, end_time, created_at, updated_at`

	shareCodeConstraint = "shared_captures_share_code_key"
)

var rosterColumns = []string{"capture_id", "student_id", "student_name", "present", "time_marked", "status"}

// CaptureRepo implements CaptureRepository using PostgreSQL.
type CaptureRepo struct{ db *DB }

// NewCaptureRepo constructs a shared capture repository.
func NewCaptureRepo(db *DB) *CaptureRepo { return &CaptureRepo{db: db} }

var _ repository.CaptureRepository = (*CaptureRepo)(nil)

// Create inserts a capture row and copies its roster in one transaction.
func (r *CaptureRepo) Create(ctx context.Context, c *model.Capture, roster []model.RosterEntry) error {
	const q = `
INSERT INTO shared_captures (id, owner_id, share_code, subject, date, start_time, end_time)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at`
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, q,
			c.ID, c.OwnerID, c.ShareCode, c.Subject, c.Date, c.StartTime, c.EndTime,
		).Scan(&c.CreatedAt, &c.UpdatedAt)
		if name, ok := violatedConstraint(err); ok {
			if name == shareCodeConstraint {
				return errs.ErrShareCodeTaken
			}
			return errs.ErrDuplicateID
		}
		if err != nil {
			return err
		}
		return copyRoster(ctx, tx, c.ID, roster)
	})
}

func copyRoster(ctx context.Context, tx pgx.Tx, captureID string, entries []model.RosterEntry) error {
	if len(entries) == 0 {
		return nil
	}
	src := pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
		e := entries[i]
		return []any{captureID, e.StudentID, e.StudentName, e.Present, e.TimeMarked, e.Status}, nil
	})
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"capture_roster"}, rosterColumns, src)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// Exists reports whether the id is taken.
func (r *CaptureRepo) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shared_captures WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}

func scanCapture(row pgx.Row, extra ...any) (*model.Capture, error) {
	var c model.Capture
	dest := append([]any{&c.ID, &c.OwnerID, &c.ShareCode, &c.Subject, &c.Date, &c.StartTime, &c.EndTime, &c.CreatedAt, &c.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetByID loads a capture by id.
func (r *CaptureRepo) GetByID(ctx context.Context, id string) (*model.Capture, error) {
	const q = `SELECT ` + captureColumns + ` FROM shared_captures WHERE id=$1`
	return scanCapture(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByShareCode loads a capture by its share code.
func (r *CaptureRepo) GetByShareCode(ctx context.Context, code string) (*model.Capture, error) {
	const q = `SELECT ` + captureColumns + ` FROM shared_captures WHERE share_code=$1`
	return scanCapture(r.db.Pool.QueryRow(ctx, q, code))
}

// ListOwned returns the user's own captures, newest first.
func (r *CaptureRepo) ListOwned(ctx context.Context, userID uuid.UUID) ([]model.CaptureSummary, error) {
	const q = `SELECT ` + captureColumns + ` FROM shared_captures WHERE owner_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CaptureSummary{}
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, model.CaptureSummary{Capture: *c, AccessType: model.RoleOwner})
	}
	return out, rows.Err()
}

// ListShared returns captures the user collaborates on, newest first.
func (r *CaptureRepo) ListShared(ctx context.Context, userID uuid.UUID) ([]model.CaptureSummary, error) {
	const q = `
SELECT c.id, c.owner_id, c.share_code, c.subject, c.date, c.start_time, c.end_time, c.created_at, c.updated_at, cc.role, u.name
FROM shared_captures c
JOIN capture_collaborators cc ON cc.capture_id = c.id
JOIN users u ON u.id = c.owner_id
WHERE cc.user_id=$1 AND c.owner_id <> $1
ORDER BY c.created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CaptureSummary{}
	for rows.Next() {
		var role, owner string
		c, err := scanCapture(rows, &role, &owner)
		if err != nil {
			return nil, err
		}
		out = append(out, model.CaptureSummary{Capture: *c, AccessType: model.Role(role), OwnerName: owner})
	}
	return out, rows.Err()
}

// Update applies provided metadata fields and, when set, swaps the roster in
// the same transaction.
func (r *CaptureRepo) Update(ctx context.Context, id string, p model.CapturePatch) error {
	if p.Empty() {
		return nil
	}
	sets := make([]string, 0, 5)
	args := []any{id}
	add := func(col string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	add("subject", p.Subject)
	add("date", p.Date)
	add("start_time", p.StartTime)
	add("end_time", p.EndTime)
	sets = append(sets, "updated_at=now()")

	q := `UPDATE shared_captures SET ` + strings.Join(sets, ", ") + ` WHERE id=$1`
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
		if p.Roster == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM capture_roster WHERE capture_id=$1`, id); err != nil {
			return err
		}
		return copyRoster(ctx, tx, id, *p.Roster)
	})
}

// Delete removes children and the capture in one transaction.
func (r *CaptureRepo) Delete(ctx context.Context, id string) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM capture_roster WHERE capture_id=$1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM capture_collaborators WHERE capture_id=$1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM shared_captures WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
}

// CollaboratorRole returns the stored role of a collaborator.
func (r *CaptureRepo) CollaboratorRole(ctx context.Context, captureID string, userID uuid.UUID) (model.Role, error) {
	const q = `SELECT role FROM capture_collaborators WHERE capture_id=$1 AND user_id=$2`
	var role string
	if err := r.db.Pool.QueryRow(ctx, q, captureID, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return model.Role(role), nil
}

// UpsertCollaborator inserts or re-roles a collaborator.
func (r *CaptureRepo) UpsertCollaborator(ctx context.Context, captureID string, userID uuid.UUID, role model.Role) error {
	const q = `
INSERT INTO capture_collaborators (capture_id, user_id, role)
VALUES ($1, $2, $3)
ON CONFLICT (capture_id, user_id) DO UPDATE SET role=EXCLUDED.role`
	_, err := r.db.Pool.Exec(ctx, q, captureID, userID, string(role))
	return err
}

// RemoveCollaborator deletes a collaborator row.
func (r *CaptureRepo) RemoveCollaborator(ctx context.Context, captureID string, userID uuid.UUID) (bool, error) {
	const q = `DELETE FROM capture_collaborators WHERE capture_id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, captureID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Collaborators lists collaborators with user names, oldest first.
func (r *CaptureRepo) Collaborators(ctx context.Context, captureID string) ([]model.Collaborator, error) {
	const q = `
SELECT cc.user_id, u.name, u.email, cc.role, cc.joined_at
FROM capture_collaborators cc
JOIN users u ON u.id = cc.user_id
WHERE cc.capture_id=$1
ORDER BY cc.joined_at`
	rows, err := r.db.Pool.Query(ctx, q, captureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Collaborator{}
	for rows.Next() {
		var (
			c    model.Collaborator
			role string
		)
		if err := rows.Scan(&c.UserID, &c.Name, &c.Email, &role, &c.JoinedAt); err != nil {
			return nil, err
		}
		c.Role = model.Role(role)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceRoster swaps the whole roster inside one transaction.
func (r *CaptureRepo) ReplaceRoster(ctx context.Context, captureID string, entries []model.RosterEntry) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM capture_roster WHERE capture_id=$1`, captureID); err != nil {
			return err
		}
		if err := copyRoster(ctx, tx, captureID, entries); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE shared_captures SET updated_at=now() WHERE id=$1`, captureID)
		return err
	})
}

// Roster returns the capture's roster sorted by name, case-insensitive.
func (r *CaptureRepo) Roster(ctx context.Context, captureID string) ([]model.RosterEntry, error) {
	const q = `
SELECT student_id, student_name, present, time_marked, status
FROM capture_roster
WHERE capture_id=$1
ORDER BY lower(student_name), student_id`
	rows, err := r.db.Pool.Query(ctx, q, captureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RosterEntry{}
	for rows.Next() {
		var e model.RosterEntry
		if err := rows.Scan(&e.StudentID, &e.StudentName, &e.Present, &e.TimeMarked, &e.Status); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
