package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"digigoods/internal/pkg/redis"
	"digigoods/internal/service/order/domain"
)

const releaseLockScriptName = "release_checkout_lock"

// RedisCheckoutLocker 是 port.Locker 的 Redis 实现，基于 SET NX PX 和 token 校验释放。
type RedisCheckoutLocker struct {
	redisClient *redis.Client
	ttl         time.Duration
	wait        time.Duration
	retry       time.Duration
}

// NewRedisCheckoutLocker 创建锁适配器，并在创建时注册释放锁的 Lua 脚本。
func NewRedisCheckoutLocker(redisClient *redis.Client, ttl, wait time.Duration) (*RedisCheckoutLocker, error) {
	if err := redisClient.LoadScriptFromContent(releaseLockScriptName, releaseLockScript); err != nil {
		return nil, fmt.Errorf("failed to load release lock script: %w", err)
	}
	return &RedisCheckoutLocker{
		redisClient: redisClient,
		ttl:         ttl,
		wait:        wait,
		retry:       20 * time.Millisecond,
	}, nil
}

// Acquire 在 wait 时间内反复尝试加锁，超时返回 domain.ErrLockTimeout
func (l *RedisCheckoutLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "lock:" + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	for {
		ok, err := l.redisClient.GetClient().SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("acquire lock %s: %w", lockKey, err)
		}
		if ok {
			return func() { l.release(lockKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, domain.ErrLockTimeout
		case <-time.After(l.retry):
		}
	}
}

// release 只删除自己持有的锁，锁已过期并被别人拿到时不做任何事
func (l *RedisCheckoutLocker) release(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := l.redisClient.RunScript(ctx, releaseLockScriptName, []string{lockKey}, token); err != nil {
		log.Warn().Err(err).Str("key", lockKey).Msg("failed to release checkout lock")
	}
}

var releaseLockScript = `
-- KEYS[1]: 锁的 key
-- ARGV[1]: 加锁时写入的 token
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`
