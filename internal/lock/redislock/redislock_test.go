package redislock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"stockquote/internal/lock"
	"stockquote/internal/lock/redislock"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAcquire_ExclusiveAcrossInstances(t *testing.T) {
	t.Parallel()

	// Arrange: two lockers sharing one Redis stand in for two service instances.
	_, client := newClient(t)
	a := redislock.New(client, redislock.Config{Retry: time.Millisecond})
	b := redislock.New(client, redislock.Config{Retry: time.Millisecond})

	// Act: a holds the lease.
	lease, err := a.Acquire(t.Context())
	require.NoError(t, err)

	// Assert: b cannot get it until a releases.
	_, err = b.TryAcquire(t.Context())
	require.ErrorIs(t, err, lock.ErrNotAcquired)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = b.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, lease.Release(t.Context()))
	other, err := b.Acquire(t.Context())
	require.NoError(t, err)
	require.NoError(t, other.Release(t.Context()))
}

func TestLease_ExpiresAndReleaseDoesNotStealNewHolder(t *testing.T) {
	t.Parallel()

	mr, client := newClient(t)
	l := redislock.New(client, redislock.Config{TTL: time.Second})

	stale, err := l.Acquire(t.Context())
	require.NoError(t, err)

	// the holder crashed; its lease runs out
	mr.FastForward(2 * time.Second)

	fresh, err := l.TryAcquire(t.Context())
	require.NoError(t, err)

	// a late release from the old holder must not free the new lease
	require.NoError(t, stale.Release(t.Context()))
	require.True(t, mr.Exists(lock.DefaultName))

	require.NoError(t, fresh.Release(t.Context()))
	require.False(t, mr.Exists(lock.DefaultName))
	require.NoError(t, fresh.Release(t.Context()))
}

func TestAcquire_BackendUnavailable(t *testing.T) {
	t.Parallel()

	// nothing listens on port 1
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	_, err := redislock.New(client, redislock.Config{}).Acquire(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, lock.ErrNotAcquired)
}
