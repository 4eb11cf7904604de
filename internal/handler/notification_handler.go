package handler

import (
	"strconv"

	"hustconnect/internal/service"
	"hustconnect/pkg/jwt"
	"hustconnect/pkg/response"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications *service.NotificationService
}

func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List 通知列表，?unread=true 只看未读
func (h *NotificationHandler) List(c *gin.Context) {
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))
	list, err := h.notifications.List(c.Request.Context(), jwt.GetUserID(c), unreadOnly, queryInt(c, "limit", 0))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"count": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), jwt.GetUserID(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已标记为已读", nil)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "全部已读", gin.H{"updated": n})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), jwt.GetUserID(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "通知已删除", nil)
}
