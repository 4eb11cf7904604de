package websocket

import (
	"context"

	"hustconnect/pkg/broker"
	"hustconnect/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client 代表一个WebSocket连接
// ID: 连接ID（同一用户可有多个连接）
// UserID: 用户ID
// send: 待发送消息，由 Hub 在连接移除时关闭
type Client struct {
	ID     string
	UserID uint
	send   chan []byte
	rooms  map[uint]struct{} // 仅由 Hub 协程访问
}

// NewClient 创建连接
func NewClient(userID uint, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, buffer),
		rooms:  make(map[uint]struct{}),
	}
}

// Send 返回只读发送通道；通道关闭表示连接已被 Hub 移除
func (c *Client) Send() <-chan []byte {
	return c.send
}

type membership struct {
	client         *Client
	conversationID uint
}

type delivery struct {
	topic   broker.Topic
	client  *Client // 非空时只发给该连接
	payload []byte
}

// Hub 管理所有连接与会话房间，所有状态只在 Run 协程中修改
type Hub struct {
	register   chan *Client
	unregister chan *Client
	join       chan membership
	leave      chan membership
	deliver    chan delivery
	query      chan func()
	done       chan struct{}

	clients map[*Client]struct{}
	rooms   map[uint]map[*Client]struct{} // conversationId -> 连接
	users   map[uint]map[*Client]struct{} // userId -> 连接
}

// NewHub 创建 Hub，需调用 Run 后才开始工作
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan membership),
		leave:      make(chan membership),
		deliver:    make(chan delivery, 256),
		query:      make(chan func()),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[uint]map[*Client]struct{}),
		users:      make(map[uint]map[*Client]struct{}),
	}
}

// Run 处理所有事件直到 ctx 取消；退出时关闭全部连接的发送通道
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for c := range h.clients {
			h.remove(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			addTo(h.users, c.UserID, c)
		case c := <-h.unregister:
			h.remove(c)
		case m := <-h.join:
			if _, ok := h.clients[m.client]; !ok {
				continue
			}
			m.client.rooms[m.conversationID] = struct{}{}
			addTo(h.rooms, m.conversationID, m.client)
		case m := <-h.leave:
			delete(m.client.rooms, m.conversationID)
			removeFrom(h.rooms, m.conversationID, m.client)
		case d := <-h.deliver:
			h.dispatch(d)
		case fn := <-h.query:
			// 查询前先处理已入队的投递，调用方能观察到此前 Deliver 的结果
			h.drain()
			fn()
		}
	}
}

func (h *Hub) drain() {
	for {
		select {
		case d := <-h.deliver:
			h.dispatch(d)
		default:
			return
		}
	}
}

func (h *Hub) dispatch(d delivery) {
	if d.client != nil {
		if _, ok := h.clients[d.client]; ok {
			h.push(d.client, d.payload)
		}
		return
	}

	var targets map[*Client]struct{}
	switch d.topic.Kind {
	case broker.TopicConversation:
		targets = h.rooms[d.topic.ID]
	case broker.TopicUser:
		targets = h.users[d.topic.ID]
	}
	for c := range targets {
		h.push(c, d.payload)
	}
}

// push 非阻塞写入；缓冲已满说明客户端消费过慢，直接断开
func (h *Hub) push(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		logger.Warn("WebSocket发送缓冲已满，断开连接",
			zap.Uint("user_id", c.UserID),
			zap.String("client_id", c.ID),
		)
		h.remove(c)
	}
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	removeFrom(h.users, c.UserID, c)
	for id := range c.rooms {
		removeFrom(h.rooms, id, c)
	}
	c.rooms = make(map[uint]struct{})
	close(c.send)
}

func addTo(index map[uint]map[*Client]struct{}, key uint, c *Client) {
	set, ok := index[key]
	if !ok {
		set = make(map[*Client]struct{})
		index[key] = set
	}
	set[c] = struct{}{}
}

func removeFrom(index map[uint]map[*Client]struct{}, key uint, c *Client) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(index, key)
	}
}

// Register 添加新连接
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister 移除连接，可重复调用
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Join 订阅会话房间
func (h *Hub) Join(c *Client, conversationID uint) {
	select {
	case h.join <- membership{client: c, conversationID: conversationID}:
	case <-h.done:
	}
}

// Leave 退出会话房间
func (h *Hub) Leave(c *Client, conversationID uint) {
	select {
	case h.leave <- membership{client: c, conversationID: conversationID}:
	case <-h.done:
	}
}

// Deliver 投递给本实例上订阅了该主题的连接，可直接作为 broker.Handler
func (h *Hub) Deliver(topic broker.Topic, payload []byte) {
	select {
	case h.deliver <- delivery{topic: topic, payload: payload}:
	case <-h.done:
	}
}

// SendTo 只发给指定连接（如错误回执）
func (h *Hub) SendTo(c *Client, payload []byte) {
	select {
	case h.deliver <- delivery{client: c, payload: payload}:
	case <-h.done:
	}
}

// do 在 Hub 协程中执行 fn 并等待完成；Hub 已停止时返回 false
func (h *Hub) do(fn func()) bool {
	finished := make(chan struct{})
	select {
	case h.query <- func() { fn(); close(finished) }:
	case <-h.done:
		return false
	}
	<-finished
	return true
}

// RoomSize 会话房间中的连接数
func (h *Hub) RoomSize(conversationID uint) int {
	var n int
	h.do(func() { n = len(h.rooms[conversationID]) })
	return n
}

// ClientCount 当前连接总数
func (h *Hub) ClientCount() int {
	var n int
	h.do(func() { n = len(h.clients) })
	return n
}

// UserConnections 用户在本实例上的连接数
func (h *Hub) UserConnections(userID uint) int {
	var n int
	h.do(func() { n = len(h.users[userID]) })
	return n
}

// Subscribe 将 broker 上的事件转交给 Hub，阻塞直到 ctx 取消
func (h *Hub) Subscribe(ctx context.Context, b broker.Broker) error {
	return b.Subscribe(ctx, h.Deliver)
}
