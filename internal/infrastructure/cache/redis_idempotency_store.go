package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/infrastructure/config"
)

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

// DefaultKeyPrefix namespaces idempotency keys in a shared Redis.
const DefaultKeyPrefix = "billing:idempotency:"

const redisDialTimeout = 5 * time.Second

// RedisIdempotencyStore shares idempotency keys between replicas. Records are
// JSON and expire through Redis TTLs.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewRedisIdempotencyStore connects and pings; an unreachable server is an error.
func NewRedisIdempotencyStore(ctx context.Context, cfg config.RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return NewRedisIdempotencyStoreWithClient(client, DefaultKeyPrefix), nil
}

// NewRedisIdempotencyStoreWithClient uses an existing client; Close closes it.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, prefix string) *RedisIdempotencyStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisIdempotencyStore{client: client, prefix: prefix}
}

// Reserve uses SET NX so exactly one concurrent request wins the key.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(shared.IdempotencyRecord{State: shared.IdempotencyInFlight})
	if err != nil {
		return false, err
	}
	won, err := s.client.SetNX(ctx, s.prefix+key, payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return won, nil
}

func (s *RedisIdempotencyStore) Lookup(ctx context.Context, key string) (*shared.IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}

	rec := new(shared.IdempotencyRecord)
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record for %q: %w", key, err)
	}
	return rec, nil
}

// Complete overwrites the reservation and restarts its TTL.
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, statusCode int, body []byte, ttl time.Duration) error {
	payload, err := json.Marshal(shared.IdempotencyRecord{
		State:      shared.IdempotencyCompleted,
		StatusCode: statusCode,
		Body:       body,
	})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}
