package model

import (
	"fmt"
	"time"
)

// Conversation 会话，参与者 >= 2
// DirectKey 仅用于一对一会话，保证同一对用户只有一个会话
type Conversation struct {
	ID           uint      `gorm:"primaryKey"`
	DirectKey    *string   `gorm:"type:varchar(64);uniqueIndex;comment:一对一会话唯一键"`
	CreatedAt    time.Time `gorm:"comment:创建时间"`
	UpdatedAt    time.Time `gorm:"index;comment:最近活跃时间"`
	Participants []User    `gorm:"many2many:conversation_participant;joinForeignKey:ConversationID;joinReferences:UserID"`
	Messages     []Message `gorm:"constraint:OnDelete:CASCADE"`
}

func (Conversation) TableName() string { return "conversation" }

// ConversationParticipant 会话参与者关联表
type ConversationParticipant struct {
	ConversationID uint `gorm:"primaryKey"`
	UserID         uint `gorm:"primaryKey;index"`
	CreatedAt      time.Time
}

func (ConversationParticipant) TableName() string { return "conversation_participant" }

// DirectKey 一对一会话的唯一键
func DirectKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// HasParticipant 判断用户是否为会话参与者（需已加载 Participants）
func (c *Conversation) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// OtherParticipant 返回第一个不是 userID 的参与者
func (c *Conversation) OtherParticipant(userID uint) *User {
	for i := range c.Participants {
		if c.Participants[i].ID != userID {
			return &c.Participants[i]
		}
	}
	return nil
}
