package lock

import (
	"fmt"

	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Backend names accepted by the factory
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Factory creates lockers based on configuration
type Factory struct {
	redisConfig           config.RedisConfig
	backend               string
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithBackend selects the locker backend ("redis" or "memory")
func WithBackend(backend string) FactoryOption {
	return func(f *Factory) {
		f.backend = backend
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory locker
// when Redis is unavailable. Default is false.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig: cfg,
		backend:     BackendRedis,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisLocker creates a Redis-based locker
func (f *Factory) CreateRedisLocker() (shared.Locker, error) {
	locker, err := NewRedisLocker(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis locker: %w", err)
	}
	return locker, nil
}

// CreateInMemoryLocker creates an in-memory locker.
// WARNING: in-memory locks are not shared across process instances, so two
// instances could reserve the same number; the unique index still rejects
// the second save.
func (f *Factory) CreateInMemoryLocker() shared.Locker {
	return NewInMemoryLocker()
}

// CreateLocker creates the configured locker. With the redis backend an
// unreachable server is an error unless in-memory fallback is allowed.
func (f *Factory) CreateLocker() (shared.Locker, error) {
	switch f.backend {
	case BackendMemory:
		f.logger.Info("using in-memory numbering locker")
		return f.CreateInMemoryLocker(), nil
	case BackendRedis, "":
	default:
		return nil, fmt.Errorf("unknown lock backend %q", f.backend)
	}

	locker, err := f.CreateRedisLocker()
	if err == nil {
		f.logger.Info("using Redis numbering locker")
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for numbering locks but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory numbering locker. "+
		"Concurrent instances may reserve the same number.",
		zap.Error(err),
	)
	return f.CreateInMemoryLocker(), nil
}
