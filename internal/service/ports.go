package service

import (
	"context"

	"hustconnect/pkg/apperr"
	"hustconnect/pkg/db"
)

// MessagePublisher 新消息实时推送（会话房间）
type MessagePublisher interface {
	PublishNewMessage(ctx context.Context, conversationID uint, message interface{}) error
}

// NotificationPublisher 通知实时推送（用户全部连接）
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, userID uint, notification interface{}) error
}

// Notifier 通知投递；失败只记录日志，不影响调用方
type Notifier interface {
	Notify(ctx context.Context, userID uint, kind, title, message, link string, data map[string]interface{})
}

// notFoundOr 记录不存在时返回 NotFound，其余按内部错误处理
func notFoundOr(err error, msg string) error {
	if db.IsNotFound(err) {
		return apperr.NotFound("%s", msg)
	}
	return apperr.Internal(err, msg)
}
