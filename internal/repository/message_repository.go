package repository

import (
	"context"

	"hustconnect/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 消息数据仓储
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建MessageRepository实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 创建消息
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return conn(ctx, r.db).Create(message).Error
}

// ListPage 分页获取会话消息，最新的在前
func (r *MessageRepository) ListPage(ctx context.Context, conversationID uint, limit, offset int) ([]model.Message, error) {
	var messages []model.Message
	err := conn(ctx, r.db).
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, err
}

// Count 会话消息总数
func (r *MessageRepository) Count(ctx context.Context, conversationID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.Message{}).Where("conversation_id = ?", conversationID).Count(&count).Error
	return count, err
}

// MarkReadFor 将会话中他人发送的未读消息标记为已读
func (r *MessageRepository) MarkReadFor(ctx context.Context, conversationID, readerID uint) (int64, error) {
	res := conn(ctx, r.db).Model(&model.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// LatestFor 每个会话中最新的一条消息，没有消息的会话不在结果中
func (r *MessageRepository) LatestFor(ctx context.Context, conversationIDs []uint) (map[uint]*model.Message, error) {
	latest := make(map[uint]*model.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return latest, nil
	}
	newest := conn(ctx, r.db).Model(&model.Message{}).
		Select("MAX(id)").
		Where("conversation_id IN ?", conversationIDs).
		Group("conversation_id")
	var messages []model.Message
	if err := conn(ctx, r.db).Preload("Sender").Where("id IN (?)", newest).Find(&messages).Error; err != nil {
		return nil, err
	}
	for i := range messages {
		latest[messages[i].ConversationID] = &messages[i]
	}
	return latest, nil
}

// UnreadCounts 每个会话中他人发给 userID 的未读数
func (r *MessageRepository) UnreadCounts(ctx context.Context, conversationIDs []uint, userID uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ConversationID uint
		Count          int64
	}
	err := conn(ctx, r.db).Model(&model.Message{}).
		Select("conversation_id, COUNT(*) AS count").
		Where("conversation_id IN ? AND sender_id <> ? AND is_read = ?", conversationIDs, userID, false).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ConversationID] = row.Count
	}
	return counts, nil
}
