package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_BlocksAtThresholdAndResets(t *testing.T) {
	t.Parallel()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(5*time.Minute, 3, 10*time.Minute)
	m.now = func() time.Time { return clock }
	ctx := context.Background()
	ip := HashIP("10.0.0.1")

	for i := 0; i < 2; i++ {
		blocked, _, err := m.Failure(ctx, "a@example.com", ip)
		require.NoError(t, err)
		require.False(t, blocked)
	}
	blocked, dur, err := m.Failure(ctx, "a@example.com", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, dur)

	ok, retry, err := m.Allow(ctx, "a@example.com", ip)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 10*time.Minute, retry)

	// other ip is unaffected
	ok, _, _ = m.Allow(ctx, "a@example.com", HashIP("10.0.0.2"))
	require.True(t, ok)

	clock = clock.Add(11 * time.Minute)
	ok, _, _ = m.Allow(ctx, "a@example.com", ip)
	require.True(t, ok)

	require.NoError(t, m.Success(ctx, "a@example.com", ip))
	blocked, _, _ = m.Failure(ctx, "a@example.com", ip)
	require.False(t, blocked)
}

func TestMemory_WindowExpiryRestartsCount(t *testing.T) {
	t.Parallel()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute, 2, time.Minute)
	m.now = func() time.Time { return clock }
	ctx := context.Background()

	blocked, _, _ := m.Failure(ctx, "a@example.com", nil)
	require.False(t, blocked)
	clock = clock.Add(2 * time.Minute)
	blocked, _, _ = m.Failure(ctx, "a@example.com", nil)
	require.False(t, blocked)
}
