package service

import (
	"time"

	"hustconnect/internal/model"

	"gorm.io/datatypes"
)

// UserBrief 对外展示的用户信息（不含邮箱等隐私字段）
type UserBrief struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Headline string `json:"headline,omitempty"`
	Image    string `json:"image,omitempty"`
}

// UserView 当前用户自己的信息
type UserView struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Headline  string    `json:"headline,omitempty"`
	Image     string    `json:"image,omitempty"`
	CompanyID *uint     `json:"companyId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserBrief(u *model.User) *UserBrief {
	if u == nil {
		return nil
	}
	return &UserBrief{ID: u.ID, Name: u.Name, Headline: u.Headline, Image: u.Image}
}

func toUserView(u *model.User) *UserView {
	return &UserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Headline:  u.Headline,
		Image:     u.Image,
		CompanyID: u.CompanyID,
		CreatedAt: u.CreatedAt,
	}
}

// 连接状态（相对于查看者）
const (
	ConnectionNone     = "none"
	ConnectionSelf     = "self"
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
	ConnectionRejected = "rejected"
)

// ConnectionStatus 查看者与目标用户之间的连接状态
type ConnectionStatus struct {
	Status           string `json:"connectionStatus"`
	IsRequester      bool   `json:"isRequester"`
	ConnectionsCount int64  `json:"connectionsCount"`
}

// ProfileView 他人主页
type ProfileView struct {
	UserBrief
	Role      string `json:"role"`
	CompanyID *uint  `json:"companyId,omitempty"`
	ConnectionStatus
}

// AuthResult 注册/登录结果
type AuthResult struct {
	User  *UserView `json:"user"`
	Token string    `json:"token"`
}

// CompanyView 公司主页
type CompanyView struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Logo           string    `json:"logo,omitempty"`
	Website        string    `json:"website,omitempty"`
	Industry       string    `json:"industry,omitempty"`
	Size           string    `json:"size,omitempty"`
	Location       string    `json:"location,omitempty"`
	CreatedBy      uint      `json:"createdBy"`
	FollowersCount int64     `json:"followersCount"`
	IsFollowing    bool      `json:"isFollowing"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MyCompanyView 当前用户所属公司
type MyCompanyView struct {
	CompanyView
	IsAdmin bool `json:"isAdmin"`
}

func toCompanyView(c *model.Company) *CompanyView {
	return &CompanyView{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Logo:        c.Logo,
		Website:     c.Website,
		Industry:    c.Industry,
		Size:        c.Size,
		Location:    c.Location,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
	}
}

// ConnectionView 好友连接或待处理请求
type ConnectionView struct {
	ID        uint       `json:"id"`
	User      *UserBrief `json:"user"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

// FollowState 关注切换结果
type FollowState struct {
	Following      bool  `json:"following"`
	FollowersCount int64 `json:"followersCount"`
}

// JoinRequestView 加入公司申请
type JoinRequestView struct {
	ID         uint       `json:"id"`
	UserID     uint       `json:"userId"`
	User       *UserBrief `json:"user,omitempty"`
	CompanyID  uint       `json:"companyId"`
	Status     string     `json:"status"`
	Message    string     `json:"message,omitempty"`
	ReviewedBy *uint      `json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toJoinRequestView(e *model.RelationshipEdge, user *model.User) *JoinRequestView {
	return &JoinRequestView{
		ID:         e.ID,
		UserID:     e.RequesterID,
		User:       toUserBrief(user),
		CompanyID:  e.TargetID,
		Status:     string(e.Status),
		Message:    e.Message,
		ReviewedBy: e.ReviewedBy,
		ReviewedAt: e.ReviewedAt,
		CreatedAt:  e.CreatedAt,
	}
}

// MessageView 消息
type MessageView struct {
	ID             uint       `json:"id"`
	ConversationID uint       `json:"conversationId"`
	SenderID       uint       `json:"senderId"`
	Sender         *UserBrief `json:"sender,omitempty"`
	Content        string     `json:"content"`
	IsRead         bool       `json:"isRead"`
	Timestamp      time.Time  `json:"timestamp"`
}

func toMessageView(m *model.Message) *MessageView {
	if m == nil {
		return nil
	}
	return &MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         toUserBrief(m.Sender),
		Content:        m.Content,
		IsRead:         m.IsRead,
		Timestamp:      m.CreatedAt,
	}
}

// ConversationView 会话列表项
type ConversationView struct {
	ID               uint         `json:"id"`
	Participants     []UserBrief  `json:"participants"`
	OtherParticipant *UserBrief   `json:"otherParticipant"`
	LastMessage      *MessageView `json:"lastMessage"`
	UnreadCount      int64        `json:"unreadCount"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

func toConversationView(c *model.Conversation, viewerID uint) *ConversationView {
	participants := make([]UserBrief, 0, len(c.Participants))
	for i := range c.Participants {
		participants = append(participants, *toUserBrief(&c.Participants[i]))
	}
	return &ConversationView{
		ID:               c.ID,
		Participants:     participants,
		OtherParticipant: toUserBrief(c.OtherParticipant(viewerID)),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// CreateConversationResult 查找或创建会话的结果
type CreateConversationResult struct {
	*ConversationView
	IsNew bool `json:"isNew"`
}

// Pagination 分页信息
type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"perPage"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
}

// ConversationPage 打开会话的结果
type ConversationPage struct {
	Conversation *ConversationView `json:"conversation"`
	Messages     []MessageView     `json:"messages"`
	Pagination   Pagination        `json:"pagination"`
}

// NotificationView 通知
type NotificationView struct {
	ID        uint              `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message,omitempty"`
	Link      string            `json:"link,omitempty"`
	Data      datatypes.JSONMap `json:"data,omitempty"`
	IsRead    bool              `json:"isRead"`
	CreatedAt time.Time         `json:"createdAt"`
}

func toNotificationView(n *model.Notification) *NotificationView {
	return &NotificationView{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		Data:      n.Data,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
