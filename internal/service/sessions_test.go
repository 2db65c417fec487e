package service

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ditrix/ditrix-server/internal/errs"
)

func TestSessions_IssueAndAuthenticate(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())

	tok, err := e.sessions.Issue(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, e.clock.Now().Add(24*time.Hour), tok.ExpiresAt)

	got, err := e.sessions.Authenticate(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, uid, got)

	// two tokens issued in the same instant stay distinct
	tok2, err := e.sessions.Issue(ctx, uid)
	require.NoError(t, err)
	require.NotEqual(t, tok.AccessToken, tok2.AccessToken)
}

func TestSessions_Authenticate_Rejections(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())

	_, err := e.sessions.Authenticate(ctx, "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = e.sessions.Authenticate(ctx, "not-a-jwt")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	// signed with another key
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: uid.String()}).SignedString([]byte("other"))
	require.NoError(t, err)
	require.NoError(t, e.sessions.Create(ctx, foreign, uid, e.clock.Now().Add(time.Hour)))
	_, err = e.sessions.Authenticate(ctx, foreign)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	// valid signature but no session row
	orphan, err := e.sessions.signToken(uid, e.clock.Now())
	require.NoError(t, err)
	_, err = e.sessions.Authenticate(ctx, orphan)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	// session row owned by someone else
	require.NoError(t, e.sessions.Create(ctx, orphan, uuid.Must(uuid.NewV4()), e.clock.Now().Add(time.Hour)))
	_, err = e.sessions.Authenticate(ctx, orphan)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestSessions_ExpiredIsAbsentAndRemoved(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())

	tok, err := e.sessions.Issue(ctx, uid)
	require.NoError(t, err)

	e.clock.Advance(24 * time.Hour) // expires_at == now counts as expired
	_, err = e.sessions.Authenticate(ctx, tok.AccessToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = e.sessions.Find(ctx, tok.AccessToken)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSessions_Extend(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())

	_, found, err := e.sessions.Extend(ctx, "missing", time.Hour)
	require.NoError(t, err)
	require.False(t, found)

	tok, err := e.sessions.Issue(ctx, uid)
	require.NoError(t, err)
	e.clock.Advance(23 * time.Hour)

	exp, found, err := e.sessions.Extend(ctx, tok.AccessToken, 24*time.Hour)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, e.clock.Now().Add(24*time.Hour), exp)

	e.clock.Advance(2 * time.Hour)
	_, err = e.sessions.Authenticate(ctx, tok.AccessToken)
	require.NoError(t, err)

	s, err := e.sessions.Find(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, exp, s.ExpiresAt)
}

func TestSessions_DeleteByUserAndCleanup(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	alice, bob := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	a1, _ := e.sessions.Issue(ctx, alice)
	_, _ = e.sessions.Issue(ctx, alice)
	b1, _ := e.sessions.Issue(ctx, bob)

	n, err := e.sessions.DeleteByUser(ctx, alice)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	_, err = e.sessions.Authenticate(ctx, a1.AccessToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	require.NoError(t, e.sessions.Create(ctx, "stale", bob, e.clock.Now().Add(-time.Minute)))
	n, err = e.sessions.Cleanup(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	_, err = e.sessions.Authenticate(ctx, b1.AccessToken)
	require.NoError(t, err)

	ok, err := e.sessions.Delete(ctx, b1.AccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = e.sessions.Delete(ctx, b1.AccessToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRunJanitor_StopsOnCancel(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	require.NoError(t, e.sessions.Create(context.Background(), "stale", uuid.Must(uuid.NewV4()), e.clock.Now().Add(-time.Minute)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunJanitor(ctx, e.sessions, 5*time.Millisecond, zaptest.NewLogger(t))
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := e.sessions.Find(context.Background(), "stale")
		return err != nil
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
