package service

import (
	"context"

	"hustconnect/internal/model"
	"hustconnect/internal/repository"
	"hustconnect/pkg/apperr"
	"hustconnect/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 100
)

// NotificationService 站内通知：持久化后推送给用户的在线连接
type NotificationService struct {
	repo      *repository.NotificationRepository
	publisher NotificationPublisher
}

func NewNotificationService(repo *repository.NotificationRepository, publisher NotificationPublisher) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher}
}

// Notify 创建通知；失败只记录日志
func (s *NotificationService) Notify(ctx context.Context, userID uint, kind, title, message, link string, data map[string]interface{}) {
	n := &model.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    link,
		Data:    datatypes.JSONMap(data),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		logger.Warn("创建通知失败",
			zap.Uint("user_id", userID),
			zap.String("type", kind),
			zap.Error(err),
		)
		return
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishNotification(ctx, userID, toNotificationView(n)); err != nil {
		logger.Warn("推送通知失败",
			zap.Uint("user_id", userID),
			zap.Uint("notification_id", n.ID),
			zap.Error(err),
		)
	}
}

// List 用户通知列表，limit 默认50，最大100
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]NotificationView, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	items, err := s.repo.List(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list notifications")
	}
	views := make([]NotificationView, 0, len(items))
	for i := range items {
		views = append(views, *toNotificationView(&items[i]))
	}
	return views, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperr.Internal(err, "failed to count notifications")
	}
	return count, nil
}

// owned 校验通知归属
func (s *NotificationService) owned(ctx context.Context, userID, id uint) (*model.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "notification not found")
	}
	if n.UserID != userID {
		return nil, apperr.Forbidden("not authorized")
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return apperr.Internal(err, "failed to mark notification as read")
	}
	return nil
}

// MarkAllRead 返回本次标记的数量
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperr.Internal(err, "failed to mark notifications as read")
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Internal(err, "failed to delete notification")
	}
	return nil
}
