package repository

import (
	"context"
	"time"

	"hustconnect/internal/model"

	"gorm.io/gorm"
)

// ConversationRepository 会话数据仓储
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func preloadParticipants(db *gorm.DB) *gorm.DB {
	return db.Preload("Participants", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	})
}

// Create 创建会话并写入参与者
func (r *ConversationRepository) Create(ctx context.Context, conv *model.Conversation, participantIDs []uint) error {
	tx := conn(ctx, r.db)
	if err := tx.Omit("Participants").Create(conv).Error; err != nil {
		return err
	}
	rows := make([]model.ConversationParticipant, 0, len(participantIDs))
	for _, id := range participantIDs {
		rows = append(rows, model.ConversationParticipant{ConversationID: conv.ID, UserID: id})
	}
	return tx.Create(&rows).Error
}

// GetByID 查询会话（含参与者）
func (r *ConversationRepository) GetByID(ctx context.Context, id uint) (*model.Conversation, error) {
	var c model.Conversation
	if err := preloadParticipants(conn(ctx, r.db)).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByDirectKey 查询一对一会话
func (r *ConversationRepository) GetByDirectKey(ctx context.Context, key string) (*model.Conversation, error) {
	var c model.Conversation
	if err := preloadParticipants(conn(ctx, r.db)).Where("direct_key = ?", key).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// IsParticipant 用户是否为会话参与者
func (r *ConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListForUser 用户参与的全部会话，最近活跃的在前
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uint) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := preloadParticipants(conn(ctx, r.db)).
		Where("id IN (?)", conn(ctx, r.db).Model(&model.ConversationParticipant{}).
			Select("conversation_id").
			Where("user_id = ?", userID)).
		Order("updated_at DESC, id DESC").
		Find(&convs).Error
	return convs, err
}

// Touch 将 updated_at 推进到 at；不会回退
func (r *ConversationRepository) Touch(ctx context.Context, id uint, at time.Time) error {
	return conn(ctx, r.db).Model(&model.Conversation{}).
		Where("id = ? AND updated_at < ?", id, at).
		UpdateColumn("updated_at", at).Error
}
