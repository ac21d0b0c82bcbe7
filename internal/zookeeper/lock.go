// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
)

const (
	lockRoot = "/digigoods/locks" // 所有分布式锁的根节点
)

// ErrLockTimeout 表示在 ctx 结束前没能拿到锁。
var ErrLockTimeout = errors.New("zookeeper: timeout waiting for lock")

// DistributedLock 定义了一个分布式锁对象，一个实例同一时间只持有一把锁
type DistributedLock struct {
	conn     *Conn  // ZooKeeper连接
	path     string // 锁的路径，例如 /digigoods/locks/checkout-user-42
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例，并确保锁的父节点存在
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	lockPath := lockRoot + "/" + resourceID
	if err := conn.ensurePath(lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

// Lock 尝试获取锁，拿不到时阻塞等待前一个节点删除，直到 ctx 结束
func (l *DistributedLock) Lock(ctx context.Context) error {
	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath
	myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")

	for {
		// 2. 获取锁路径下的所有子节点，按序号排序
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.abandon()
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Slice(children, func(i, j int) bool { return sequenceOf(children[i]) < sequenceOf(children[j]) })

		// 3. 判断自己是否是最小的节点
		idx := -1
		for i, child := range children {
			if child == myNodeName {
				idx = i
				break
			}
		}
		if idx == 0 {
			return nil
		}
		if idx < 0 {
			l.abandon()
			return errors.New("own lock node disappeared, session may have expired")
		}

		// 4. 不是最小节点，监听前一个节点
		prevNodePath := l.path + "/" + children[idx-1]
		exists, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			l.abandon()
			return fmt.Errorf("failed to watch previous node: %w", err)
		}
		if !exists {
			continue
		}

		select {
		case <-eventChan:
			// 前一个节点有变化，重新竞争
		case <-ctx.Done():
			l.abandon()
			return ErrLockTimeout
		}
	}
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}

// abandon 放弃排队，删除自己的节点，避免阻塞后来者
func (l *DistributedLock) abandon() {
	if l.lockNode != "" {
		_ = l.conn.Delete(l.lockNode, -1)
		l.lockNode = ""
	}
}

// sequenceOf 取出顺序节点末尾的 10 位序号。受保护节点带有 GUID 前缀，不能直接按名字排序。
func sequenceOf(node string) string {
	if len(node) < 10 {
		return node
	}
	return node[len(node)-10:]
}
