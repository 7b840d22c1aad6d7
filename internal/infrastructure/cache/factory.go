package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/config"
)

// Stores bundles the coordination stores used by the sync service
type Stores struct {
	Lock   integration.PassLock
	Nonces NonceStore
	closer func() error
	pinger func(ctx context.Context) error
}

// Ping checks the backing Redis server. In-memory stores are always healthy.
func (s *Stores) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger(ctx)
}

// Close releases the Redis client or in-memory sweepers
func (s *Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Distributed reports whether the stores are shared across processes
func (s *Stores) Distributed() bool {
	_, ok := s.Lock.(*RedisPassLock)
	return ok
}

// StoreFactory creates lock and nonce stores based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// in-memory stores. Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStores connects to Redis and builds stores sharing one client
func (f *StoreFactory) CreateRedisStores(ctx context.Context) (*Stores, error) {
	client, err := NewRedisClient(ctx, RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, err
	}
	return newRedisStores(client), nil
}

func newRedisStores(client *redis.Client) *Stores {
	return &Stores{
		Lock:   NewRedisPassLock(client, ""),
		Nonces: NewRedisNonceStore(client, ""),
		closer: client.Close,
		pinger: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	}
}

// CreateInMemoryStores builds single-process stores.
// WARNING: passes started on different instances will not exclude each other.
func (f *StoreFactory) CreateInMemoryStores() *Stores {
	lock := NewInMemoryPassLock()
	nonces := NewInMemoryNonceStore()
	return &Stores{
		Lock:   lock,
		Nonces: nonces,
		closer: func() error {
			_ = lock.Close()
			return nonces.Close()
		},
	}
}

// CreateStores uses Redis when a host is configured, falling back to
// in-memory stores when allowed.
func (f *StoreFactory) CreateStores(ctx context.Context) (*Stores, error) {
	if f.redisConfig.Host == "" {
		f.logger.Info("no Redis host configured, using in-memory lock and nonce stores")
		return f.CreateInMemoryStores(), nil
	}

	stores, err := f.CreateRedisStores(ctx)
	if err == nil {
		f.logger.Info("using Redis lock and nonce stores", zap.String("addr", f.redisConfig.Addr()))
		return stores, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for pass locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory lock and nonce stores. "+
		"Concurrent instances may run overlapping sync passes.",
		zap.Error(err),
	)
	return f.CreateInMemoryStores(), nil
}
