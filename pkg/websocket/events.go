package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"hustconnect/pkg/broker"
)

// 出站事件类型
const (
	EventNewMessage   = "new_message"
	EventNotification = "notification"
	EventJoined       = "joined"
	EventLeft         = "left"
	EventError        = "error"
)

// 入站事件类型
const (
	ActionJoin      = "join"
	ActionLeave     = "leave"
	ActionHeartbeat = "heartbeat"
)

// Envelope 出站消息
type Envelope struct {
	Type           string      `json:"type"`
	ConversationID uint        `json:"conversationId,omitempty"`
	Message        interface{} `json:"message,omitempty"`
	Notification   interface{} `json:"notification,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// Inbound 客户端发来的消息
type Inbound struct {
	Type           string `json:"type"`
	ConversationID uint   `json:"conversationId"`
}

// Publisher 通过 broker 发布实时事件，服务层依赖它而不直接接触连接
type Publisher struct {
	broker broker.Broker
}

func NewPublisher(b broker.Broker) *Publisher {
	return &Publisher{broker: b}
}

// PublishNewMessage 推送到会话房间
func (p *Publisher) PublishNewMessage(ctx context.Context, conversationID uint, message interface{}) error {
	return p.publish(ctx, broker.ConversationTopic(conversationID), Envelope{
		Type:           EventNewMessage,
		ConversationID: conversationID,
		Message:        message,
	})
}

// PublishNotification 推送到用户的全部连接
func (p *Publisher) PublishNotification(ctx context.Context, userID uint, notification interface{}) error {
	return p.publish(ctx, broker.UserTopic(userID), Envelope{
		Type:         EventNotification,
		Notification: notification,
	})
}

func (p *Publisher) publish(ctx context.Context, topic broker.Topic, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("序列化实时事件失败: %w", err)
	}
	return p.broker.Publish(ctx, topic, data)
}

func mustMarshal(env Envelope) []byte {
	data, _ := json.Marshal(env)
	return data
}
