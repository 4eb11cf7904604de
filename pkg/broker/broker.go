// Package broker 在多个服务实例之间转发实时事件。
// 业务层只发布，WebSocket Hub 订阅后投递给本实例上的连接。
package broker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// TopicKind 事件投递范围
type TopicKind string

const (
	TopicConversation TopicKind = "conversation" // 会话房间
	TopicUser         TopicKind = "user"         // 单个用户的全部连接
)

// Topic 事件主题
type Topic struct {
	Kind TopicKind
	ID   uint
}

func ConversationTopic(id uint) Topic { return Topic{Kind: TopicConversation, ID: id} }

func UserTopic(id uint) Topic { return Topic{Kind: TopicUser, ID: id} }

func (t Topic) String() string {
	return string(t.Kind) + "." + strconv.FormatUint(uint64(t.ID), 10)
}

// ParseTopic 解析 "kind.id" 形式的主题
func ParseTopic(s string) (Topic, error) {
	kind, id, ok := strings.Cut(s, ".")
	if !ok {
		return Topic{}, fmt.Errorf("无效的主题: %q", s)
	}
	switch TopicKind(kind) {
	case TopicConversation, TopicUser:
	default:
		return Topic{}, fmt.Errorf("未知的主题类型: %q", kind)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return Topic{}, fmt.Errorf("无效的主题ID: %q", s)
	}
	return Topic{Kind: TopicKind(kind), ID: uint(n)}, nil
}

// Handler 处理收到的事件
type Handler func(topic Topic, payload []byte)

// Broker 事件总线
type Broker interface {
	Publish(ctx context.Context, topic Topic, payload []byte) error
	// Subscribe 阻塞直到 ctx 取消或连接出错
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}
