package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
)

func TestCredentials_CreateUser(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	p := e.user(t, " Alice@Example.com ", "Alice")
	require.Equal(t, "alice@example.com", p.Email)
	require.False(t, p.Verified)

	_, err := e.creds.CreateUser(ctx, NewUser{Email: "alice@example.com", Password: testPassword})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	_, err = e.creds.CreateUser(ctx, NewUser{Email: "bob@example.com", Password: "short"})
	require.ErrorIs(t, err, errs.ErrInvalidPassword)
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = e.creds.CreateUser(ctx, NewUser{Email: "not-an-email", Password: testPassword})
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	ext := "firebase-uid-1"
	p, err = e.creds.CreateUser(ctx, NewUser{Email: "ext@example.com", ExternalUID: &ext})
	require.NoError(t, err)
	u, err := e.creds.FindOneBy(ctx, "external_uid", ext)
	require.NoError(t, err)
	require.Equal(t, p.ID, u.ID)
	require.Empty(t, u.PwdHash)
}

func TestCredentials_VerifyPassword_NoDistinction(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	created := e.user(t, "a@example.com", "A")

	p, err := e.creds.VerifyPassword(ctx, "A@example.com", testPassword)
	require.NoError(t, err)
	require.Equal(t, created.ID, p.ID)

	p, err = e.creds.VerifyPassword(ctx, "a@example.com", "wrong-password")
	require.NoError(t, err)
	require.Nil(t, p)

	p, err = e.creds.VerifyPassword(ctx, "ghost@example.com", testPassword)
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestCredentials_UpdatePasswordByEmail(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	e.user(t, "a@example.com", "A")

	require.ErrorIs(t, e.creds.UpdatePasswordByEmail(ctx, "a@example.com", "1234567"), errs.ErrInvalidPassword)
	require.ErrorIs(t, e.creds.UpdatePasswordByEmail(ctx, "ghost@example.com", "longenough"), errs.ErrUserNotFound)

	require.NoError(t, e.creds.UpdatePasswordByEmail(ctx, "a@example.com", "new-password"))
	p, err := e.creds.VerifyPassword(ctx, "a@example.com", "new-password")
	require.NoError(t, err)
	require.NotNil(t, p)
	p, _ = e.creds.VerifyPassword(ctx, "a@example.com", testPassword)
	require.Nil(t, p)
}

func TestCredentials_UpdateProfileByID(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, "a@example.com", "A")

	p, err := e.creds.UpdateProfileByID(ctx, u.ID, model.ProfilePatch{})
	require.NoError(t, err)
	require.Nil(t, p)

	p, err = e.creds.UpdateProfileByID(ctx, u.ID, model.ProfilePatch{Name: strp("  Alicia ")})
	require.NoError(t, err)
	require.Equal(t, "Alicia", p.Name)
	require.Empty(t, p.AvatarURL)

	_, err = e.creds.UpdateProfileByID(ctx, u.ID, model.ProfilePatch{Name: strp("  ")})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}
