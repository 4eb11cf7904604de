package broker

import (
	"context"
	"fmt"
	"strings"

	"hustconnect/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis 基于 Redis Pub/Sub 的多实例总线
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "hc:events"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) channel(topic Topic) string {
	return r.prefix + ":" + topic.String()
}

func (r *Redis) Publish(ctx context.Context, topic Topic, payload []byte) error {
	if err := r.client.Publish(ctx, r.channel(topic), payload).Err(); err != nil {
		return fmt.Errorf("发布事件失败: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, handler Handler) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+":*")
	defer pubsub.Close()

	// 等待订阅确认，保证返回前的发布不会丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("订阅事件失败: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return ErrClosed
			}
			topic, err := ParseTopic(strings.TrimPrefix(msg.Channel, r.prefix+":"))
			if err != nil {
				logger.Warn("忽略无法识别的事件", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			handler(topic, []byte(msg.Payload))
		}
	}
}

// Close 不关闭共享的 Redis 客户端
func (r *Redis) Close() error { return nil }
