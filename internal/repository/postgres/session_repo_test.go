package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestSessionRepo_Create_Upserts(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)
	now := time.Now().UTC()
	s := &model.Session{Token: "tok", UserID: uuid.Must(uuid.NewV4()), CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(time.Hour)}

	mock.ExpectExec(`INSERT INTO sessions \(token, user_id, created_at, updated_at, expires_at\) VALUES \(\$1, \$2, \$3, \$4, \$5\) ON CONFLICT \(token\) DO UPDATE`).
		WithArgs(s.Token, s.UserID, s.CreatedAt, s.UpdatedAt, s.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_GetByToken(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT token, user_id, created_at, updated_at, expires_at FROM sessions WHERE token=\$1`).
		WithArgs("tok").
		WillReturnRows(pgxmock.NewRows([]string{"token", "user_id", "created_at", "updated_at", "expires_at"}).
			AddRow("tok", uid, now, now, now.Add(time.Hour)))
	s, err := r.GetByToken(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, uid, s.UserID)

	mock.ExpectQuery(`FROM sessions WHERE token=\$1`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"token", "user_id", "created_at", "updated_at", "expires_at"}))
	_, err = r.GetByToken(ctx, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`FROM sessions WHERE token=\$1`).
		WithArgs("tok").
		WillReturnError(errors.New("boom"))
	_, err = r.GetByToken(ctx, "tok")
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestSessionRepo_SetExpiry(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	exp := now.Add(24 * time.Hour)

	mock.ExpectExec(`UPDATE sessions SET expires_at=\$2, updated_at=\$3 WHERE token=\$1`).
		WithArgs("tok", exp, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := r.SetExpiry(ctx, "tok", exp, now)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(`UPDATE sessions SET expires_at`).
		WithArgs("gone", exp, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	ok, err = r.SetExpiry(ctx, "gone", exp, now)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionRepo_Deletes(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM sessions WHERE token=\$1`).
		WithArgs("tok").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	ok, err := r.Delete(ctx, "tok")
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(`DELETE FROM sessions WHERE user_id=\$1`).
		WithArgs(uid).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	n, err := r.DeleteByUser(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	n, err = r.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	mock.ExpectExec(`DELETE FROM sessions WHERE token=\$1`).
		WithArgs("tok").
		WillReturnError(errors.New("boom"))
	_, err = r.Delete(ctx, "tok")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
