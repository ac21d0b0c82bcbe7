// Package redis 封装 go-redis 客户端，并提供按名称注册和执行 Lua 脚本的能力。
package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// Config 描述 redis 连接参数。Addrs 多于一个时使用集群客户端。
type Config struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

// Client 是 go-redis UniversalClient 的薄封装。
type Client struct {
	client  goredis.UniversalClient
	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient 创建客户端并做一次 PING 检查连通性。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: no address configured")
	}
	uc := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := uc.Ping(ctx).Err(); err != nil {
		_ = uc.Close()
		return nil, errors.Wrapf(err, "redis: ping %s", strings.Join(cfg.Addrs, ","))
	}
	return Wrap(uc), nil
}

// Wrap 包装一个已有的 go-redis 客户端，测试中用来接 miniredis。
func Wrap(uc goredis.UniversalClient) *Client {
	return &Client{client: uc, scripts: make(map[string]*goredis.Script)}
}

// GetClient 返回底层客户端，供 pipeline 等原生操作使用。
func (c *Client) GetClient() goredis.UniversalClient {
	return c.client
}

// LoadScriptFromContent 以 name 注册一段 Lua 脚本。重复注册会覆盖旧脚本。
func (c *Client) LoadScriptFromContent(name, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("redis: script %q is empty", name)
	}
	c.mu.Lock()
	c.scripts[name] = goredis.NewScript(content)
	c.mu.Unlock()
	return nil
}

// LoadScriptFromFile 从文件读取脚本后注册。
func (c *Client) LoadScriptFromFile(name, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "redis: read script %s", path)
	}
	return c.LoadScriptFromContent(name, string(content))
}

// RunScript 执行已注册的脚本。优先 EVALSHA，服务端没有缓存时自动回退到 EVAL。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("redis: script %q not loaded", name)
	}
	return script.Run(ctx, c.client, keys, args...).Result()
}

func (c *Client) Close() error {
	return c.client.Close()
}
