// internal/zookeeper/conn.go
package zookeeper

import (
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
)

// Conn 包装 zk.Conn，锁实现只依赖这里暴露的方法。
type Conn struct {
	*zk.Conn
}

// Connect 连接 "host1:2181,host2:2181" 形式的 ZooKeeper 集群。
func Connect(servers string, sessionTimeout time.Duration) (*Conn, error) {
	var hosts []string
	for _, s := range strings.Split(servers, ",") {
		if s = strings.TrimSpace(s); s != "" {
			hosts = append(hosts, s)
		}
	}
	if len(hosts) == 0 {
		return nil, errors.New("zookeeper: no servers configured")
	}
	c, _, err := zk.Connect(hosts, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrap(err, "zookeeper: connect")
	}
	zlog.Info().Strs("servers", hosts).Msg("Connected to ZooKeeper")
	return &Conn{Conn: c}, nil
}

// ensurePath 逐级创建持久节点，已存在的节点忽略。
func (c *Conn) ensurePath(path string) error {
	cur := ""
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		cur += "/" + part
		_, err := c.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return errors.Wrapf(err, "zookeeper: create %s", cur)
		}
	}
	return nil
}
