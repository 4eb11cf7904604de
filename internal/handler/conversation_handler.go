package handler

import (
	"hustconnect/internal/service"
	"hustconnect/pkg/jwt"
	"hustconnect/pkg/response"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	conversations *service.ConversationService
}

func NewConversationHandler(conversations *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// List 当前用户的会话列表，按最近活动倒序
// @Summary 获取会话列表
// @Tags 消息
// @Produce json
// @Success 200 {object} response.Response{data=[]service.ConversationView}
// @Router /api/v1/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	list, err := h.conversations.ListConversations(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// Create 查找或创建会话；一对一会话已存在时返回 200
// @Summary 查找或创建会话
// @Tags 消息
// @Accept json
// @Produce json
// @Success 200 {object} response.Response{data=service.CreateConversationResult}
// @Success 201 {object} response.Response{data=service.CreateConversationResult}
// @Router /api/v1/conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	type req struct {
		ParticipantIDs []uint `json:"participantIds" binding:"required,min=1,dive,gt=0"`
	}
	var r req
	if err := bindJSON(c, &r); err != nil {
		response.FromError(c, err)
		return
	}
	res, err := h.conversations.FindOrCreateConversation(c.Request.Context(), jwt.GetUserID(c), r.ParticipantIDs)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if res.IsNew {
		response.Created(c, "会话已创建", res)
		return
	}
	response.Success(c, res)
}

// Open 打开会话：标记已读并分页返回消息（最新在前）
func (h *ConversationHandler) Open(c *gin.Context) {
	conversationID, err := paramID(c, "conversation_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	page, err := h.conversations.OpenConversation(c.Request.Context(), jwt.GetUserID(c), conversationID,
		queryInt(c, "page", 1), queryInt(c, "per_page", 0))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, page)
}

// Send 发送消息
// @Summary 发送消息
// @Tags 消息
// @Accept json
// @Produce json
// @Param conversation_id path int true "会话ID"
// @Success 201 {object} response.Response{data=service.MessageView}
// @Failure 403 {object} response.Response
// @Router /api/v1/conversations/{conversation_id}/messages [post]
func (h *ConversationHandler) Send(c *gin.Context) {
	type req struct {
		Content string `json:"content" binding:"max=5000"`
	}
	conversationID, err := paramID(c, "conversation_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	var r req
	if err := bindJSON(c, &r); err != nil {
		response.FromError(c, err)
		return
	}
	msg, err := h.conversations.SendMessage(c.Request.Context(), jwt.GetUserID(c), conversationID, r.Content)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "发送成功", msg)
}
