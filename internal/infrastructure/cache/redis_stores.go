package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

const (
	defaultLockPrefix  = "sync:lock:"
	defaultNoncePrefix = "sync:nonce:"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// ---------------------------------------------------------------------------
// Pass lock
// ---------------------------------------------------------------------------

// releaseScript deletes the key only while it still holds our token, so a
// holder whose TTL lapsed cannot release a lock taken over by another process.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisPassLock implements integration.PassLock with SET NX PX
type RedisPassLock struct {
	client    *redis.Client
	keyPrefix string
	owner     string
}

var _ integration.PassLock = (*RedisPassLock)(nil)

// NewRedisPassLock creates a lock owned by this process
func NewRedisPassLock(client *redis.Client, keyPrefix string) *RedisPassLock {
	if keyPrefix == "" {
		keyPrefix = defaultLockPrefix
	}
	return &RedisPassLock{
		client:    client,
		keyPrefix: keyPrefix,
		owner:     uuid.NewString(),
	}
}

// Acquire returns false when the key is already held
func (l *RedisPassLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Release frees a key held by this process; releasing a foreign or expired key is a no-op
func (l *RedisPassLock) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, l.owner).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Nonce store
// ---------------------------------------------------------------------------

// RedisNonceStore implements NonceStore on Redis keys with TTL
type RedisNonceStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ NonceStore = (*RedisNonceStore)(nil)

// NewRedisNonceStore creates a nonce store sharing the given client
func NewRedisNonceStore(client *redis.Client, keyPrefix string) *RedisNonceStore {
	if keyPrefix == "" {
		keyPrefix = defaultNoncePrefix
	}
	return &RedisNonceStore{client: client, keyPrefix: keyPrefix}
}

// Issue creates a nonce bound to subject
func (s *RedisNonceStore) Issue(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	nonce := uuid.NewString()
	if err := s.client.Set(ctx, s.keyPrefix+nonce, subject, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to issue nonce: %w", err)
	}
	return nonce, nil
}

// Consume atomically deletes the nonce; it succeeds once and only for the subject it was issued to
func (s *RedisNonceStore) Consume(ctx context.Context, subject, nonce string) (bool, error) {
	if nonce == "" {
		return false, nil
	}
	owner, err := s.client.GetDel(ctx, s.keyPrefix+nonce).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return owner == subject, nil
}
