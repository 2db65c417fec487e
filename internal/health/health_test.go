package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestChecker_AllUp(t *testing.T) {
	t.Parallel()
	c := New(time.Second, 0)
	c.Register("db", PingFunc(func(context.Context) error { return nil }))
	c.Register("redis", PingFunc(func(context.Context) error { return nil }))

	st := c.Status(context.Background())
	require.True(t, st.OK)
	require.Equal(t, map[string]bool{"db": true, "redis": true}, st.Components)
	require.NoError(t, c.Ready(context.Background()))
}

func TestChecker_OneDownIsUnavailable(t *testing.T) {
	t.Parallel()
	c := New(time.Second, 0)
	c.Register("db", PingFunc(func(context.Context) error { return errors.New("refused") }))
	c.Register("redis", PingFunc(func(context.Context) error { return nil }))

	st := c.Status(context.Background())
	require.False(t, st.OK)
	require.False(t, st.Components["db"])

	err := c.Ready(context.Background())
	require.ErrorIs(t, err, errs.ErrUnavailable)
	require.Contains(t, err.Error(), "db")
}

func TestChecker_TimeoutCountsAsDown(t *testing.T) {
	t.Parallel()
	c := New(20*time.Millisecond, 0)
	c.Register("db", PingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	require.ErrorIs(t, c.Ready(context.Background()), errs.ErrUnavailable)
}

func TestChecker_CancelledCallerDoesNotPoisonCache(t *testing.T) {
	t.Parallel()
	c := New(time.Second, time.Minute)
	c.Register("db", PingFunc(func(ctx context.Context) error { return ctx.Err() }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Ready(ctx))
	require.NoError(t, c.Ready(context.Background()))
}

func TestChecker_CachesWithinTTL(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	now := time.Unix(1000, 0)
	c := New(time.Second, 5*time.Second)
	c.now = func() time.Time { return now }
	c.Register("db", PingFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	c.Status(context.Background())
	c.Status(context.Background())
	require.EqualValues(t, 1, calls.Load())

	now = now.Add(6 * time.Second)
	c.Status(context.Background())
	require.EqualValues(t, 2, calls.Load())
}

func TestChecker_NoBackendsIsReady(t *testing.T) {
	t.Parallel()
	require.NoError(t, New(0, 0).Ready(context.Background()))
}
