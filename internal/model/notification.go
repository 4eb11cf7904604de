package model

import (
	"time"

	"gorm.io/datatypes"
)

// 通知类型
const (
	NotifyConnectionRequest  = "connection_request"
	NotifyConnectionAccepted = "connection_accepted"
	NotifyConnectionRejected = "connection_rejected"
	NotifyJoinRequest        = "join_request"
	NotifyJoinApproved       = "join_request_approved"
	NotifyJoinRejected       = "join_request_rejected"
)

// Notification 站内通知
type Notification struct {
	ID        uint              `gorm:"primaryKey"`
	UserID    uint              `gorm:"not null;index:idx_notification_user_read;comment:接收者ID"`
	Type      string            `gorm:"type:varchar(50);not null;comment:通知类型"`
	Title     string            `gorm:"type:varchar(200);not null"`
	Message   string            `gorm:"type:text"`
	Link      string            `gorm:"type:varchar(500)"`
	Data      datatypes.JSONMap `gorm:"comment:附加数据"`
	IsRead    bool              `gorm:"not null;default:false;index:idx_notification_user_read"`
	CreatedAt time.Time         `gorm:"index"`
}

func (Notification) TableName() string { return "notification" }

// All 返回需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&User{},
		&Company{},
		&RelationshipEdge{},
		&Conversation{},
		&ConversationParticipant{},
		&Message{},
		&Notification{},
	}
}
