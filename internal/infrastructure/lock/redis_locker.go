package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired holder can never release a lease that has since been re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements shared.Locker with Redis SET NX PX leases.
// This is suitable for distributed deployments where multiple instances
// issue numbers for the same tenant.
type RedisLocker struct {
	client       *redis.Client
	keyPrefix    string
	pollInterval time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisLocker creates a Redis-backed locker and verifies the connection
func NewRedisLocker(cfg RedisConfig) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLockerWithClient(client, ""), nil
}

// NewRedisLockerWithClient creates a locker with an existing Redis client
func NewRedisLockerWithClient(client *redis.Client, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "lock:"
	}
	return &RedisLocker{
		client:       client,
		keyPrefix:    keyPrefix,
		pollInterval: 25 * time.Millisecond,
	}
}

// TryAcquire makes one SET NX attempt
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &redisLock{locker: l, key: key, token: token}, nil
}

// Acquire polls TryAcquire until it succeeds, wait elapses or ctx is done
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (shared.Lock, error) {
	return acquireWithPolling(ctx, l.pollInterval, wait, func(ctx context.Context) (shared.Lock, error) {
		return l.TryAcquire(ctx, key, ttl)
	})
}

// Close closes the Redis client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// Ping checks that Redis is reachable
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (l *RedisLocker) GetClient() *redis.Client {
	return l.client
}

type redisLock struct {
	locker *RedisLocker
	key    string
	token  string
}

func (k *redisLock) Key() string {
	return k.key
}

func (k *redisLock) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, k.locker.client, []string{k.locker.keyPrefix + k.key}, k.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", k.key, err)
	}
	return nil
}

// acquireWithPolling retries try until it returns a lock, the wait budget is
// spent (shared.ErrLockTimeout) or ctx is done (ctx.Err())
func acquireWithPolling(ctx context.Context, interval, wait time.Duration, try func(context.Context) (shared.Lock, error)) (shared.Lock, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lk, err := try(ctx)
		if err != nil {
			return nil, err
		}
		if lk != nil {
			return lk, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, shared.ErrLockTimeout
		case <-ticker.C:
		}
	}
}

// Ensure RedisLocker implements Locker
var _ shared.Locker = (*RedisLocker)(nil)
