package repository

import (
	"context"
	"time"

	"hustconnect/internal/model"

	"gorm.io/gorm"
)

// RelationshipRepository 关系记录仓储，三种关系类型共用
type RelationshipRepository struct {
	db *gorm.DB
}

func NewRelationshipRepository(db *gorm.DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

// Create 创建关系记录；ActiveKey 冲突时返回唯一约束错误
func (r *RelationshipRepository) Create(ctx context.Context, edge *model.RelationshipEdge) error {
	return conn(ctx, r.db).Create(edge).Error
}

func (r *RelationshipRepository) GetByID(ctx context.Context, id uint) (*model.RelationshipEdge, error) {
	var e model.RelationshipEdge
	if err := conn(ctx, r.db).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByActiveKey 查询持有唯一键的记录
func (r *RelationshipRepository) GetByActiveKey(ctx context.Context, key string) (*model.RelationshipEdge, error) {
	var e model.RelationshipEdge
	if err := conn(ctx, r.db).Where("active_key = ?", key).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// GetDirected 查询指定方向、指定状态的记录
func (r *RelationshipRepository) GetDirected(ctx context.Context, kind model.EdgeKind, requesterID, targetID uint, status model.EdgeStatus) (*model.RelationshipEdge, error) {
	var e model.RelationshipEdge
	err := conn(ctx, r.db).
		Where("kind = ? AND requester_id = ? AND target_id = ? AND status = ?", kind, requesterID, targetID, status).
		Order("created_at DESC, id DESC").
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Review 条件更新状态：只有当前状态为 from 时才生效
// clearKey 为 true 时释放唯一键
func (r *RelationshipRepository) Review(ctx context.Context, id uint, from, to model.EdgeStatus, reviewerID uint, clearKey bool) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      to,
		"reviewed_by": reviewerID,
		"reviewed_at": now,
		"updated_at":  now,
	}
	if clearKey {
		updates["active_key"] = nil
	}
	res := conn(ctx, r.db).Model(&model.RelationshipEdge{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteBetween 删除两个用户之间任意方向、任意状态的记录
func (r *RelationshipRepository) DeleteBetween(ctx context.Context, kind model.EdgeKind, a, b uint) (int64, error) {
	res := conn(ctx, r.db).
		Where("kind = ? AND ((requester_id = ? AND target_id = ?) OR (requester_id = ? AND target_id = ?))", kind, a, b, b, a).
		Delete(&model.RelationshipEdge{})
	return res.RowsAffected, res.Error
}

// DeleteByActiveKey 按唯一键删除
func (r *RelationshipRepository) DeleteByActiveKey(ctx context.Context, key string) (int64, error) {
	res := conn(ctx, r.db).Where("active_key = ?", key).Delete(&model.RelationshipEdge{})
	return res.RowsAffected, res.Error
}

// DeleteIfStatus 条件删除
func (r *RelationshipRepository) DeleteIfStatus(ctx context.Context, id uint, status model.EdgeStatus) (bool, error) {
	res := conn(ctx, r.db).Where("id = ? AND status = ?", id, status).Delete(&model.RelationshipEdge{})
	return res.RowsAffected > 0, res.Error
}

// CountByTarget 统计目标的关系数量
func (r *RelationshipRepository) CountByTarget(ctx context.Context, kind model.EdgeKind, targetID uint, status model.EdgeStatus) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.RelationshipEdge{}).
		Where("kind = ? AND target_id = ? AND status = ?", kind, targetID, status).
		Count(&count).Error
	return count, err
}

// ListByTarget 目标收到的记录，按创建时间倒序
func (r *RelationshipRepository) ListByTarget(ctx context.Context, kind model.EdgeKind, targetID uint, status model.EdgeStatus) ([]model.RelationshipEdge, error) {
	var edges []model.RelationshipEdge
	err := conn(ctx, r.db).
		Where("kind = ? AND target_id = ? AND status = ?", kind, targetID, status).
		Order("created_at DESC, id DESC").
		Find(&edges).Error
	return edges, err
}

// ListInvolving 用户作为任意一方的记录，按创建时间倒序
func (r *RelationshipRepository) ListInvolving(ctx context.Context, kind model.EdgeKind, userID uint, status model.EdgeStatus) ([]model.RelationshipEdge, error) {
	var edges []model.RelationshipEdge
	err := conn(ctx, r.db).
		Where("kind = ? AND status = ? AND (requester_id = ? OR target_id = ?)", kind, status, userID, userID).
		Order("created_at DESC, id DESC").
		Find(&edges).Error
	return edges, err
}

// LatestBetween 两个用户之间任意方向最新的一条记录
func (r *RelationshipRepository) LatestBetween(ctx context.Context, kind model.EdgeKind, a, b uint) (*model.RelationshipEdge, error) {
	var edge model.RelationshipEdge
	err := conn(ctx, r.db).
		Where("kind = ? AND ((requester_id = ? AND target_id = ?) OR (requester_id = ? AND target_id = ?))", kind, a, b, b, a).
		Order("id DESC").
		First(&edge).Error
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

// CountInvolving 统计用户作为任意一方的记录数
func (r *RelationshipRepository) CountInvolving(ctx context.Context, kind model.EdgeKind, userID uint, status model.EdgeStatus) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.RelationshipEdge{}).
		Where("kind = ? AND status = ? AND (requester_id = ? OR target_id = ?)", kind, status, userID, userID).
		Count(&count).Error
	return count, err
}
