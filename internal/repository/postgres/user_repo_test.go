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
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "email", "pwd_hash", "salt_auth", "external_uid", "name", "avatar_url", "verified", "created_at", "updated_at"}

func userRow(id uuid.UUID, email string, ts time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(userCols).
		AddRow(id, email, []byte("h"), []byte("s"), nil, "Alice", "", true, ts, ts)
}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	ts := time.Now().UTC()
	u := &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		Email:    "a@example.com",
		PwdHash:  []byte("h"),
		SaltAuth: []byte("s"),
		Name:     "Alice",
	}

	// OK
	mock.ExpectQuery(`INSERT INTO users \(id, email, pwd_hash, salt_auth, external_uid, name, avatar_url, verified\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\) RETURNING created_at, updated_at`).
		WithArgs(u.ID, u.Email, u.PwdHash, u.SaltAuth, u.ExternalUID, u.Name, u.AvatarURL, u.Verified).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))
	require.NoError(t, r.Create(ctx, u))
	require.Equal(t, ts, u.CreatedAt)

	// Unique violation
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(u.ID, u.Email, u.PwdHash, u.SaltAuth, u.ExternalUID, u.Name, u.AvatarURL, u.Verified).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	err := r.Create(ctx, u)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, email, pwd_hash, salt_auth, external_uid, name, avatar_url, verified, created_at, updated_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(userRow(id, "a@example.com", time.Now()))
	u, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Nil(t, u.ExternalUID)
	require.True(t, u.Verified)

	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(errors.New("conn reset"))
	_, err = r.GetByID(ctx, id)
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("a@example.com").
		WillReturnRows(userRow(id, "a@example.com", time.Now()))
	u, err := r.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "a@example.com", u.Email)

	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("nobody@example.com").
		WillReturnRows(pgxmock.NewRows(userCols))
	_, err = r.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, errs.ErrUserNotFound)
}

func TestUserRepo_FindOneBy(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM users WHERE name=\$1 ORDER BY created_at LIMIT 1`).
		WithArgs("Alice").
		WillReturnRows(userRow(id, "a@example.com", time.Now()))
	u, err := r.FindOneBy(ctx, "name", "Alice")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)

	_, err = r.FindOneBy(ctx, "pwd_hash", "x")
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = r.FindOneBy(ctx, "email; DROP TABLE users", "x")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_UpdatePassword(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE users SET pwd_hash=\$2, salt_auth=\$3, updated_at=now\(\) WHERE email=\$1`).
		WithArgs("a@example.com", []byte("h2"), []byte("s2")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdatePassword(ctx, "a@example.com", []byte("h2"), []byte("s2")))

	mock.ExpectExec(`UPDATE users SET pwd_hash`).
		WithArgs("ghost@example.com", []byte("h2"), []byte("s2")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := r.UpdatePassword(ctx, "ghost@example.com", []byte("h2"), []byte("s2"))
	require.ErrorIs(t, err, errs.ErrUserNotFound)
}

func TestUserRepo_UpdateProfile_OnlyProvidedFields(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	name := "Bob"

	mock.ExpectQuery(`UPDATE users SET name=\$2, updated_at=now\(\) WHERE id=\$1 RETURNING id, email`).
		WithArgs(id, name).
		WillReturnRows(userRow(id, "a@example.com", time.Now()))
	_, err := r.UpdateProfile(ctx, id, model.ProfilePatch{Name: &name})
	require.NoError(t, err)

	avatar := "https://cdn/x.png"
	mock.ExpectQuery(`UPDATE users SET name=\$2, avatar_url=\$3, updated_at=now\(\) WHERE id=\$1`).
		WithArgs(id, name, avatar).
		WillReturnRows(userRow(id, "a@example.com", time.Now()))
	_, err = r.UpdateProfile(ctx, id, model.ProfilePatch{Name: &name, AvatarURL: &avatar})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, email, pwd_hash, salt_auth, external_uid, name, avatar_url, verified, created_at, updated_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(userRow(id, "a@example.com", time.Now()))
	_, err = r.UpdateProfile(ctx, id, model.ProfilePatch{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_SetVerifiedByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE users SET verified=true, updated_at=now\(\) WHERE email=\$1`).
		WithArgs("a@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetVerifiedByEmail(ctx, "a@example.com"))

	mock.ExpectExec(`UPDATE users SET verified=true`).
		WithArgs("b@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.SetVerifiedByEmail(ctx, "b@example.com"), errs.ErrUserNotFound)
}
