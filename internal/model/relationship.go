package model

import (
	"fmt"
	"time"
)

// EdgeKind 关系类型
type EdgeKind string

const (
	EdgeConnection  EdgeKind = "connection"   // 用户 -> 用户
	EdgeFollow      EdgeKind = "follow"       // 用户 -> 公司
	EdgeCompanyJoin EdgeKind = "company-join" // 用户 -> 公司
)

// EdgeStatus 关系状态
type EdgeStatus string

const (
	EdgePending  EdgeStatus = "pending"
	EdgeAccepted EdgeStatus = "accepted"
	EdgeRejected EdgeStatus = "rejected"
)

// RelationshipEdge 有向关系记录（好友连接 / 关注公司 / 加入公司申请）
//
// ActiveKey 承载唯一性约束：处于阻塞状态的记录持有该键，
// 离开阻塞状态（拒绝、加入申请被处理）后置空，NULL 不参与唯一索引。
type RelationshipEdge struct {
	ID          uint       `gorm:"primaryKey"`
	Kind        EdgeKind   `gorm:"type:varchar(20);not null;index:idx_edge_kind_requester;index:idx_edge_kind_target;comment:关系类型"`
	RequesterID uint       `gorm:"not null;index:idx_edge_kind_requester;comment:发起方ID"`
	TargetID    uint       `gorm:"not null;index:idx_edge_kind_target;comment:目标ID(用户或公司)"`
	Status      EdgeStatus `gorm:"type:varchar(20);not null;default:'pending';index;comment:状态"`
	Message     string     `gorm:"type:text;comment:附言(加入申请)"`
	ActiveKey   *string    `gorm:"type:varchar(80);uniqueIndex;comment:唯一性键"`
	ReviewedBy  *uint      `gorm:"comment:审核人ID"`
	ReviewedAt  *time.Time `gorm:"comment:审核时间"`
	CreatedAt   time.Time  `gorm:"index;comment:创建时间"`
	UpdatedAt   time.Time  `gorm:"comment:更新时间"`
}

func (RelationshipEdge) TableName() string { return "relationship_edge" }

// ConnectionKey 无序用户对的唯一键
func ConnectionKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%d:%d", EdgeConnection, a, b)
}

// FollowKey 关注关系唯一键
func FollowKey(userID, companyID uint) string {
	return fmt.Sprintf("%s:%d:%d", EdgeFollow, userID, companyID)
}

// PendingJoinKey 每个用户同一时间只能有一个待处理加入申请
func PendingJoinKey(userID uint) string {
	return fmt.Sprintf("%s:%d", EdgeCompanyJoin, userID)
}

// Counterpart 返回关系中另一方的ID
func (e *RelationshipEdge) Counterpart(userID uint) uint {
	if e.RequesterID == userID {
		return e.TargetID
	}
	return e.RequesterID
}
