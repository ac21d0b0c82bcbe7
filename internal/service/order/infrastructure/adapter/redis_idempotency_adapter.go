package adapter

import (
	"context"
	"fmt"
	"time"

	"digigoods/internal/pkg/redis"
)

const idempotencyKeyPrefix = "checkout:idem:"

// RedisIdempotencyStore 是 port.IdempotencyStore 的 Redis 实现
type RedisIdempotencyStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisIdempotencyStore(redisClient *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{redisClient: redisClient, ttl: ttl}
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.redisClient.GetClient().SetNX(ctx, idempotencyKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key %s: %w", key, err)
	}
	return ok, nil
}

// Release 在结算失败后删除 key，允许客户端用同一个 key 重试
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.redisClient.GetClient().Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key %s: %w", key, err)
	}
	return nil
}
