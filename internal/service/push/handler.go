package push

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"digigoods/internal/pkg/web"
)

// Handler 负责把 HTTP 连接升级为 WebSocket 并交给 Hub
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler 创建处理器。allowedOrigins 为空时允许所有来源。
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
			},
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.ServeWs)
}

// ServeWs 优先使用网关注入的 X-User-ID，浏览器无法设置请求头时退回到 userId 查询参数
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		raw = r.URL.Query().Get("userId")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		web.WriteError(w, r, http.StatusUnauthorized, "userId is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写好了错误响应
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: h.hub, conn: conn, send: make(chan []byte, sendBufferSize), userID: userID}
	if !h.hub.Register(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
