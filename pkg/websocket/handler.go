package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"hustconnect/config"
	"hustconnect/pkg/jwt"
	"hustconnect/pkg/logger"
	"hustconnect/pkg/redis"
	"hustconnect/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MembershipChecker 判断用户是否为会话参与者
type MembershipChecker interface {
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
}

// Handler WebSocket 接入
type Handler struct {
	hub      *Hub
	jwt      *jwt.JWTService
	members  MembershipChecker
	presence *redis.Presence
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, jwtSvc *jwt.JWTService, members MembershipChecker, presence *redis.Presence, cfg config.WebSocketConfig) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * cfg.PingInterval
	}
	return &Handler{
		hub:      hub,
		jwt:      jwtSvc,
		members:  members,
		presence: presence,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许跨域
			},
		},
	}
}

// ServeWS Gin路由处理函数
func (h *Handler) ServeWS(c *gin.Context) {
	// 浏览器无法设置请求头，令牌走查询参数或子协议
	protocol := c.GetHeader("Sec-WebSocket-Protocol")
	token := c.Query("token")
	if token == "" {
		token = jwt.BearerToken(protocol)
	}
	if token == "" {
		token = strings.TrimSpace(protocol)
	}
	if token == "" {
		response.Unauthorized(c, "缺少token")
		return
	}

	id, err := h.jwt.Authenticate(token)
	if err != nil {
		response.Unauthorized(c, "token无效或已过期")
		return
	}
	userID := id.UserID

	// 回显子协议，避免客户端提示 "Server sent no subprotocol"
	respHeader := http.Header{}
	if protocol != "" {
		respHeader.Set("Sec-WebSocket-Protocol", protocol)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, respHeader)
	if err != nil {
		logger.Warn("WebSocket升级失败", zap.Uint("user_id", userID), zap.Error(err))
		return
	}

	client := NewClient(userID, h.cfg.SendBuffer)
	h.hub.Register(client)
	h.setOnline(userID)
	logger.Info("WebSocket连接建立", zap.Uint("user_id", userID), zap.String("client_id", client.ID))

	defer func() {
		h.hub.Unregister(client)
		h.setOffline(userID)
		_ = conn.Close()
		logger.Info("WebSocket连接关闭", zap.Uint("user_id", userID), zap.String("client_id", client.ID))
	}()

	go h.writePump(conn, client)
	h.readPump(c.Request.Context(), conn, client)
}

// writePump 写协程 + 定时发送ping心跳；发送通道关闭时结束
func (h *Handler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// readPump 读协程（接收房间订阅/心跳）。若超时未收到任何读事件则断开
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, client *Client) {
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket读取结束", zap.Uint("user_id", client.UserID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		var msg Inbound
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.hub.SendTo(client, mustMarshal(Envelope{Type: EventError, Error: "无效的消息格式"}))
			continue
		}
		h.handleInbound(ctx, client, msg)
	}
}

func (h *Handler) handleInbound(ctx context.Context, client *Client, msg Inbound) {
	switch msg.Type {
	case ActionJoin:
		if msg.ConversationID == 0 {
			h.hub.SendTo(client, mustMarshal(Envelope{Type: EventError, Error: "缺少conversationId"}))
			return
		}
		ok, err := h.members.IsParticipant(ctx, msg.ConversationID, client.UserID)
		if err != nil {
			logger.Warn("校验会话成员失败",
				zap.Uint("user_id", client.UserID),
				zap.Uint("conversation_id", msg.ConversationID),
				zap.Error(err),
			)
		}
		if !ok {
			h.hub.SendTo(client, mustMarshal(Envelope{Type: EventError, ConversationID: msg.ConversationID, Error: "无权加入该会话"}))
			return
		}
		h.hub.Join(client, msg.ConversationID)
		h.hub.SendTo(client, mustMarshal(Envelope{Type: EventJoined, ConversationID: msg.ConversationID}))
	case ActionLeave:
		h.hub.Leave(client, msg.ConversationID)
		h.hub.SendTo(client, mustMarshal(Envelope{Type: EventLeft, ConversationID: msg.ConversationID}))
	case ActionHeartbeat:
		// 刷新用户在线状态（延长TTL）
		if err := h.presence.Refresh(ctx, client.UserID); err != nil {
			logger.Warn("刷新在线状态失败", zap.Uint("user_id", client.UserID), zap.Error(err))
		}
	default:
		h.hub.SendTo(client, mustMarshal(Envelope{Type: EventError, Error: "未知的消息类型"}))
	}
}

func (h *Handler) setOnline(userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.presence.SetOnline(ctx, userID); err != nil {
		logger.Warn("设置在线状态失败", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func (h *Handler) setOffline(userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.presence.SetOffline(ctx, userID); err != nil {
		logger.Warn("清除在线状态失败", zap.Uint("user_id", userID), zap.Error(err))
	}
}
