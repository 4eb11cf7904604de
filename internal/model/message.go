package model

import (
	"time"
)

// Message 会话消息，随会话删除
// IsRead 只会从 false 变为 true
type Message struct {
	ID             uint      `gorm:"primaryKey"`
	ConversationID uint      `gorm:"not null;index:idx_message_conv_created;comment:会话ID"`
	SenderID       uint      `gorm:"not null;index;comment:发送者ID"`
	Content        string    `gorm:"type:text;not null;comment:消息内容"`
	IsRead         bool      `gorm:"not null;default:false;comment:是否已读"`
	CreatedAt      time.Time `gorm:"index:idx_message_conv_created;comment:创建时间"`
	Sender         *User     `gorm:"foreignKey:SenderID"`
}

func (Message) TableName() string { return "message" }
