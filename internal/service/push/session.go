package push

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"digigoods/internal/pkg/redis"
)

// SessionStore 记录用户连接所在的网关节点，供多节点部署时路由消息
type SessionStore interface {
	SetUserGateway(ctx context.Context, userID int64, nodeID string) error
	RemoveUserGateway(ctx context.Context, userID int64, nodeID string) error
}

const sessionKeyPrefix = "push:session:"

const removeSessionScriptName = "remove_push_session"

// RedisSessionStore 是 SessionStore 的 Redis 实现
type RedisSessionStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisSessionStore(redisClient *redis.Client, ttl time.Duration) (*RedisSessionStore, error) {
	if err := redisClient.LoadScriptFromContent(removeSessionScriptName, removeSessionScript); err != nil {
		return nil, fmt.Errorf("failed to load session script: %w", err)
	}
	return &RedisSessionStore{redisClient: redisClient, ttl: ttl}, nil
}

func (s *RedisSessionStore) SetUserGateway(ctx context.Context, userID int64, nodeID string) error {
	return s.redisClient.GetClient().Set(ctx, sessionKey(userID), nodeID, s.ttl).Err()
}

// RemoveUserGateway 只删除仍指向本节点的会话，用户已经连到别的节点时保留
func (s *RedisSessionStore) RemoveUserGateway(ctx context.Context, userID int64, nodeID string) error {
	_, err := s.redisClient.RunScript(ctx, removeSessionScriptName, []string{sessionKey(userID)}, nodeID)
	return err
}

// UserGateway 返回用户所在节点，不在线时返回空字符串
func (s *RedisSessionStore) UserGateway(ctx context.Context, userID int64) (string, error) {
	node, err := s.redisClient.GetClient().Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return node, err
}

func sessionKey(userID int64) string {
	return sessionKeyPrefix + strconv.FormatInt(userID, 10)
}

var removeSessionScript = `
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`
