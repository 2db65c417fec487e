package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestSyncRepo_UpsertBatch_Update_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())
	it := model.CaptureSession{ID: "s-1", Subject: strp("Math")}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id FROM capture_sessions WHERE id=\$1 FOR UPDATE`).
		WithArgs(it.ID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(userID))
	mock.ExpectExec(`UPDATE capture_sessions SET subject=\$3, date=\$4, start_time=\$5, end_time=\$6, updated_at=now\(\) WHERE id=\$1 AND user_id=\$2`).
		WithArgs(it.ID, userID, it.Subject, it.Date, it.StartTime, it.EndTime).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	n, err := r.UpsertBatch(ctx, userID, []model.CaptureSession{it})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_UpsertBatch_Create_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())
	it := model.CaptureSession{ID: "s-2"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id FROM capture_sessions WHERE id=\$1 FOR UPDATE`).
		WithArgs(it.ID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO capture_sessions \(id, user_id, subject, date, start_time, end_time\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6\)`).
		WithArgs(it.ID, userID, it.Subject, it.Date, it.StartTime, it.EndTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := r.UpsertBatch(ctx, userID, []model.CaptureSession{it})
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSyncRepo_UpsertBatch_ForeignOwner_RollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())
	stranger := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id FROM capture_sessions WHERE id=\$1 FOR UPDATE`).
		WithArgs("a").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO capture_sessions`).
		WithArgs("a", userID, (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT user_id FROM capture_sessions WHERE id=\$1 FOR UPDATE`).
		WithArgs("b").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(stranger))
	mock.ExpectRollback()

	_, err := r.UpsertBatch(ctx, userID, []model.CaptureSession{{ID: "a"}, {ID: "b"}})
	require.ErrorIs(t, err, errs.ErrForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_UpsertBatch_TxBeginErr(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	mock.ExpectBegin().WillReturnError(errors.New("boom"))
	_, err := r.UpsertBatch(context.Background(), uuid.Must(uuid.NewV4()), nil)
	require.Error(t, err)
}

func TestSyncRepo_UpsertBatch_ScanOtherErr(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id FROM capture_sessions`).
		WithArgs("x").WillReturnError(errors.New("weird-scan"))
	mock.ExpectRollback()

	_, err := r.UpsertBatch(context.Background(), uuid.Must(uuid.NewV4()), []model.CaptureSession{{ID: "x"}})
	require.Error(t, err)
}

func TestSyncRepo_UpsertBatch_CommitErr(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)
	uid := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id FROM capture_sessions`).
		WithArgs("x").WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO capture_sessions`).
		WithArgs("x", uid, (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit().WillReturnError(errors.New("commit-fail"))

	_, err := r.UpsertBatch(context.Background(), uid, []model.CaptureSession{{ID: "x"}})
	require.Error(t, err)
}

func TestSyncRepo_ListByUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)
	uid := uuid.Must(uuid.NewV4())
	ts := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, user_id, subject, date, start_time, end_time, created_at, updated_at FROM capture_sessions WHERE user_id=\$1 ORDER BY date DESC NULLS LAST, start_time DESC NULLS LAST, created_at DESC`).
		WithArgs(uid).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "subject", "date", "start_time", "end_time", "created_at", "updated_at"}).
			AddRow("s-1", uid, strp("Math"), nil, nil, nil, ts, ts))
	out, err := r.ListByUser(context.Background(), uid)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Math", *out[0].Subject)

	mock.ExpectQuery(`FROM capture_sessions WHERE user_id=\$1`).
		WithArgs(uid).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "subject", "date", "start_time", "end_time", "created_at", "updated_at"}).
			RowError(0, errors.New("row0")))
	_, err = r.ListByUser(context.Background(), uid)
	require.Error(t, err)
}

func TestSyncRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)
	uid := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`DELETE FROM capture_sessions WHERE id=\$1 AND user_id=\$2`).
		WithArgs("s-1", uid).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(context.Background(), uid, "s-1"))

	mock.ExpectExec(`DELETE FROM capture_sessions`).
		WithArgs("s-9", uid).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(context.Background(), uid, "s-9"), errs.ErrNotFound)
}
