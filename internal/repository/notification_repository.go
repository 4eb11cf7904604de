package repository

import (
	"context"

	"hustconnect/internal/model"

	"gorm.io/gorm"
)

// NotificationRepository 通知数据仓储
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return conn(ctx, r.db).Create(n).Error
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uint) (*model.Notification, error) {
	var n model.Notification
	if err := conn(ctx, r.db).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// List 用户通知，最新的在前
func (r *NotificationRepository) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]model.Notification, error) {
	var items []model.Notification
	q := conn(ctx, r.db).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&items).Error
	return items, err
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id uint) error {
	return conn(ctx, r.db).Model(&model.Notification{}).Where("id = ?", id).Update("is_read", true).Error
}

// MarkAllRead 返回被标记的数量
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := conn(ctx, r.db).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) Delete(ctx context.Context, id uint) error {
	return conn(ctx, r.db).Delete(&model.Notification{}, id).Error
}
