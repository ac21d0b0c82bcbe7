// Package push 维护用户的 WebSocket 连接，把订单事件实时推送给在线用户。
package push

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub 维护所有活跃的连接。一个用户可以同时有多个连接（多个标签页或设备）。
type Hub struct {
	nodeID     string
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	lock       sync.RWMutex
	sessions   SessionStore
}

type HubOption func(*Hub)

// WithSessionStore 记录用户当前连接在哪个网关节点上
func WithSessionStore(s SessionStore) HubOption {
	return func(h *Hub) { h.sessions = s }
}

func NewHub(nodeID string, opts ...HubOption) *Hub {
	h := &Hub{
		nodeID:     nodeID,
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run 处理注册和注销，直到 ctx 结束。结束时关闭所有连接。
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			h.lock.Unlock()
			h.touchSession(ctx, client.userID, true)
			log.Info().Int64("user_id", client.userID).Str("node", h.nodeID).Msg("client registered")

		case client := <-h.unregister:
			h.lock.Lock()
			last := h.remove(client)
			h.lock.Unlock()
			if last {
				h.touchSession(ctx, client.userID, false)
			}
			log.Info().Int64("user_id", client.userID).Msg("client unregistered")

		case <-ctx.Done():
			h.lock.Lock()
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[int64]map[*Client]struct{})
			h.lock.Unlock()
			return nil
		}
	}
}

// Register 把连接交给 hub 管理，hub 已停止时返回 false
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// remove 必须在持有写锁时调用，返回该用户是否已没有任何连接
func (h *Hub) remove(c *Client) bool {
	set, ok := h.clients[c.userID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
		return true
	}
	return false
}

// Push 把消息投递给用户的所有连接，返回成功投递的连接数。
// 发送缓冲已满的连接被视为失效并断开。
func (h *Hub) Push(userID int64, message []byte) int {
	h.lock.Lock()
	defer h.lock.Unlock()

	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- message:
			delivered++
		default:
			log.Warn().Int64("user_id", userID).Msg("send buffer full, dropping client")
			h.remove(c)
		}
	}
	return delivered
}

// Online 返回用户当前的连接数
func (h *Hub) Online(userID int64) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) touchSession(ctx context.Context, userID int64, online bool) {
	if h.sessions == nil {
		return
	}
	var err error
	if online {
		err = h.sessions.SetUserGateway(ctx, userID, h.nodeID)
	} else {
		err = h.sessions.RemoveUserGateway(ctx, userID, h.nodeID)
	}
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to update push session")
	}
}
