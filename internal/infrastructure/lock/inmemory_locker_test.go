package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLocker_TryAcquire(t *testing.T) {
	locker := NewInMemoryLocker()
	defer locker.Close()

	ctx := context.Background()

	t.Run("acquires a free key", func(t *testing.T) {
		lk, err := locker.TryAcquire(ctx, "k1", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, lk)
		assert.Equal(t, "k1", lk.Key())
		require.NoError(t, lk.Release(ctx))
	})

	t.Run("returns nil while held", func(t *testing.T) {
		first, err := locker.TryAcquire(ctx, "k2", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := locker.TryAcquire(ctx, "k2", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, second, "held key should not be acquirable")

		require.NoError(t, first.Release(ctx))

		third, err := locker.TryAcquire(ctx, "k2", time.Minute)
		require.NoError(t, err)
		assert.NotNil(t, third, "released key should be acquirable")
	})

	t.Run("expired lease can be taken over", func(t *testing.T) {
		first, err := locker.TryAcquire(ctx, "k3", 10*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, first)

		time.Sleep(20 * time.Millisecond)

		second, err := locker.TryAcquire(ctx, "k3", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, second)

		// The stale holder must not release the new lease
		require.NoError(t, first.Release(ctx))
		third, err := locker.TryAcquire(ctx, "k3", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, third)
	})

	t.Run("keys are independent", func(t *testing.T) {
		a, err := locker.TryAcquire(ctx, "numbering:1:invoice", time.Minute)
		require.NoError(t, err)
		b, err := locker.TryAcquire(ctx, "numbering:2:invoice", time.Minute)
		require.NoError(t, err)
		assert.NotNil(t, a)
		assert.NotNil(t, b)
	})
}

func TestInMemoryLocker_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("times out with ErrLockTimeout", func(t *testing.T) {
		locker := NewInMemoryLocker()
		held, err := locker.TryAcquire(ctx, "busy", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, held)

		start := time.Now()
		lk, err := locker.Acquire(ctx, "busy", time.Minute, 50*time.Millisecond)
		assert.Nil(t, lk)
		assert.ErrorIs(t, err, shared.ErrLockTimeout)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("honours context cancellation", func(t *testing.T) {
		locker := NewInMemoryLocker()
		_, err := locker.TryAcquire(ctx, "busy", time.Minute)
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err = locker.Acquire(cctx, "busy", time.Minute, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("wakes up on release", func(t *testing.T) {
		locker := NewInMemoryLocker()
		held, err := locker.TryAcquire(ctx, "handoff", time.Minute)
		require.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = held.Release(ctx)
		}()

		lk, err := locker.Acquire(ctx, "handoff", time.Minute, time.Second)
		require.NoError(t, err)
		assert.NotNil(t, lk)
	})

	t.Run("waits out an expired holder", func(t *testing.T) {
		locker := NewInMemoryLocker()
		_, err := locker.TryAcquire(ctx, "crashed", 20*time.Millisecond)
		require.NoError(t, err)

		lk, err := locker.Acquire(ctx, "crashed", time.Minute, time.Second)
		require.NoError(t, err)
		assert.NotNil(t, lk)
	})
}

func TestInMemoryLocker_MutualExclusion(t *testing.T) {
	locker := NewInMemoryLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lk, err := locker.Acquire(ctx, "shared", time.Minute, 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			_ = lk.Release(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "at most one holder at a time")
	assert.Equal(t, 0, locker.Size())
}

func TestFactory_CreateLocker(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		f := NewFactory(configForUnreachableRedis(), WithBackend(BackendMemory))
		locker, err := f.CreateLocker()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryLocker{}, locker)
	})

	t.Run("unknown backend", func(t *testing.T) {
		f := NewFactory(configForUnreachableRedis(), WithBackend("zookeeper"))
		_, err := f.CreateLocker()
		assert.Error(t, err)
	})

	t.Run("redis unavailable without fallback fails closed", func(t *testing.T) {
		f := NewFactory(configForUnreachableRedis())
		_, err := f.CreateLocker()
		assert.Error(t, err)
	})

	t.Run("redis unavailable with fallback", func(t *testing.T) {
		f := NewFactory(configForUnreachableRedis(), WithInMemoryFallback(true))
		locker, err := f.CreateLocker()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryLocker{}, locker)
	})
}

// configForUnreachableRedis points at a port nothing listens on
func configForUnreachableRedis() config.RedisConfig {
	return config.RedisConfig{Host: "127.0.0.1", Port: 1}
}
