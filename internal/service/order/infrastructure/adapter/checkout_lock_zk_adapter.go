package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"digigoods/internal/service/order/domain"
	"digigoods/internal/zookeeper"
)

// ZookeeperCheckoutLocker 是 port.Locker 的 ZooKeeper 实现
type ZookeeperCheckoutLocker struct {
	conn *zookeeper.Conn
	wait time.Duration
}

func NewZookeeperCheckoutLocker(conn *zookeeper.Conn, wait time.Duration) *ZookeeperCheckoutLocker {
	return &ZookeeperCheckoutLocker{conn: conn, wait: wait}
}

func (l *ZookeeperCheckoutLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(l.conn, key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	if err := lock.Lock(ctx); err != nil {
		if errors.Is(err, zookeeper.ErrLockTimeout) {
			return nil, domain.ErrLockTimeout
		}
		return nil, err
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to release zookeeper lock")
		}
	}, nil
}
