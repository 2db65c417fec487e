package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ditrix/ditrix-server/internal/errs"
)

func TestVerificationStore_UpsertKeepsActiveCode(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	exp := e.clock.Now().Add(15 * time.Minute)

	v, err := e.verifs.Upsert(ctx, "A@example.com", "111111", exp, false)
	require.NoError(t, err)
	require.Equal(t, "111111", v.Code)
	require.Equal(t, "a@example.com", v.Email)

	v, err = e.verifs.Upsert(ctx, "a@example.com", "222222", exp, false)
	require.NoError(t, err)
	require.Equal(t, "111111", v.Code, "active code must survive a non-forced upsert")

	v, err = e.verifs.Upsert(ctx, "a@example.com", "333333", exp, true)
	require.NoError(t, err)
	require.Equal(t, "333333", v.Code)

	e.clock.Advance(16 * time.Minute)
	v, err = e.verifs.Upsert(ctx, "a@example.com", "444444", e.clock.Now().Add(time.Minute), false)
	require.NoError(t, err)
	require.Equal(t, "444444", v.Code, "expired code is replaced")
	require.Zero(t, v.Attempts)
}

func TestVerificationStore_AttemptsAndDelete(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	ok, err := e.verifs.IncAttempts(ctx, "a@example.com")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = e.verifs.Upsert(ctx, "a@example.com", "111111", e.clock.Now().Add(time.Minute), false)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		ok, err = e.verifs.IncAttempts(ctx, "a@example.com")
		require.NoError(t, err)
		require.True(t, ok)
	}
	v, err := e.verifs.Get(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, 2, v.Attempts)

	require.NoError(t, e.verifs.Delete(ctx, "a@example.com"))
	_, err = e.verifs.Get(ctx, "a@example.com")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, e.verifs.Delete(ctx, "a@example.com"))

	_, err = e.verifs.Upsert(ctx, "", "1", time.Time{}, true)
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}
