package broker

import (
	"context"
	"fmt"
	"strings"

	"hustconnect/pkg/logger"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// NATS 基于 NATS 主题的多实例总线，主题形如 prefix.conversation.12
type NATS struct {
	nc     *nats.Conn
	prefix string
}

// DialNATS 连接 NATS 服务器
func DialNATS(url, prefix string) (*NATS, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("hustconnect"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("连接NATS失败: %w", err)
	}
	return NewNATS(nc, prefix), nil
}

func NewNATS(nc *nats.Conn, prefix string) *NATS {
	if prefix == "" {
		prefix = "hc.events"
	}
	return &NATS{nc: nc, prefix: strings.ReplaceAll(prefix, ":", ".")}
}

func (n *NATS) Publish(ctx context.Context, topic Topic, payload []byte) error {
	msg := &nats.Msg{
		Subject: n.prefix + "." + topic.String(),
		Data:    payload,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := n.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("发布事件失败: %w", err)
	}
	return nil
}

func (n *NATS) Subscribe(ctx context.Context, handler Handler) error {
	sub, err := n.nc.Subscribe(n.prefix+".>", func(msg *nats.Msg) {
		topic, err := ParseTopic(strings.TrimPrefix(msg.Subject, n.prefix+"."))
		if err != nil {
			logger.Warn("忽略无法识别的事件", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		handler(topic, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("订阅事件失败: %w", err)
	}
	defer sub.Unsubscribe()

	if err := n.nc.Flush(); err != nil {
		return fmt.Errorf("订阅事件失败: %w", err)
	}

	<-ctx.Done()
	return nil
}

func (n *NATS) Close() error {
	n.nc.Close()
	return nil
}
