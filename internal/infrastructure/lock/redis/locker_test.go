package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, opts ...Option) (*miniredis.Miniredis, *Locker) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewLocker(client, "planner:", append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)...)
}

func TestLocker_LockAndUnlock(t *testing.T) {
	mr, locker := setup(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "tenant-a", "case-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("planner:lock:tenant-a/case-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("planner:lock:tenant-a/case-1"))
}

func TestLocker_BlocksUntilReleased(t *testing.T) {
	_, locker := setup(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "tenant-a", "case-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := locker.Lock(ctx, "tenant-a", "case-1")
		if err == nil {
			close(acquired)
			_ = second(ctx)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, unlock(ctx))

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestLocker_DifferentCasesDoNotContend(t *testing.T) {
	_, locker := setup(t)
	ctx := context.Background()

	u1, err := locker.Lock(ctx, "tenant-a", "case-1")
	require.NoError(t, err)
	u2, err := locker.Lock(ctx, "tenant-a", "case-2")
	require.NoError(t, err)
	u3, err := locker.Lock(ctx, "tenant-b", "case-1")
	require.NoError(t, err)

	assert.NoError(t, u1(ctx))
	assert.NoError(t, u2(ctx))
	assert.NoError(t, u3(ctx))
}

func TestLocker_ContextCancelled(t *testing.T) {
	_, locker := setup(t)

	unlock, err := locker.Lock(context.Background(), "tenant-a", "case-1")
	require.NoError(t, err)
	defer func() { _ = unlock(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "tenant-a", "case-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocker_UnlockAfterExpiryDoesNotReleaseNewOwner(t *testing.T) {
	mr, locker := setup(t, WithTTL(time.Second))
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "tenant-a", "case-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := locker.Lock(ctx, "tenant-a", "case-1")
	require.NoError(t, err)

	assert.ErrorIs(t, stale(ctx), ErrLockLost)
	assert.True(t, mr.Exists("planner:lock:tenant-a/case-1"))
	assert.NoError(t, fresh(ctx))
}

func TestLocker_MutualExclusion(t *testing.T) {
	_, locker := setup(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "tenant-a", "case-1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			assert.NoError(t, unlock(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
