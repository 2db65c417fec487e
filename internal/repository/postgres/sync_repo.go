package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// SyncRepo implements SyncRepository using PostgreSQL.
type SyncRepo struct{ db *DB }

// NewSyncRepo constructs a capture-session repository.
func NewSyncRepo(db *DB) *SyncRepo { return &SyncRepo{db: db} }

var _ repository.SyncRepository = (*SyncRepo)(nil)

// UpsertBatch inserts/updates the user's sessions in one transaction.
func (r *SyncRepo) UpsertBatch(
	ctx context.Context, userID uuid.UUID, items []model.CaptureSession,
) (n int, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT user_id FROM capture_sessions WHERE id=$1 FOR UPDATE`
	const ins = `INSERT INTO capture_sessions (id, user_id, subject, date, start_time, end_time) VALUES ($1,$2,$3,$4,$5,$6)`
	const upd = `UPDATE capture_sessions SET subject=$3, date=$4, start_time=$5, end_time=$6, updated_at=now() WHERE id=$1 AND user_id=$2`

	for i, it := range items {
		var owner uuid.UUID
		scanErr := tx.QueryRow(ctx, sel, it.ID).Scan(&owner)
		switch {
		case scanErr == nil:
			if owner != userID {
				return 0, fmt.Errorf("session[%d]: %w", i, errs.ErrForbidden)
			}
			if _, err = tx.Exec(ctx, upd, it.ID, userID, it.Subject, it.Date, it.StartTime, it.EndTime); err != nil {
				return 0, err
			}
		case errors.Is(scanErr, pgx.ErrNoRows):
			if _, err = tx.Exec(ctx, ins, it.ID, userID, it.Subject, it.Date, it.StartTime, it.EndTime); err != nil {
				return 0, err
			}
		default:
			return 0, scanErr
		}
		n++
	}
	return n, nil
}

// ListByUser returns the user's capture sessions, latest date and start time first.
func (r *SyncRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CaptureSession, error) {
	const q = `
SELECT id, user_id, subject, date, start_time, end_time, created_at, updated_at
FROM capture_sessions
WHERE user_id=$1
ORDER BY date DESC NULLS LAST, start_time DESC NULLS LAST, created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CaptureSession{}
	for rows.Next() {
		var s model.CaptureSession
		if err = rows.Scan(&s.ID, &s.UserID, &s.Subject, &s.Date, &s.StartTime, &s.EndTime, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes one of the user's sessions.
func (r *SyncRepo) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM capture_sessions WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
