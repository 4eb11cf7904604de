package handler

import (
	"hustconnect/internal/service"
	"hustconnect/pkg/jwt"
	"hustconnect/pkg/response"

	"github.com/gin-gonic/gin"
)

type ConnectionHandler struct {
	relations *service.RelationshipService
}

func NewConnectionHandler(relations *service.RelationshipService) *ConnectionHandler {
	return &ConnectionHandler{relations: relations}
}

// List 已建立的人脉连接
// @Summary 获取我的人脉
// @Tags 人脉
// @Produce json
// @Success 200 {object} response.Response{data=[]service.ConnectionView}
// @Router /api/v1/connections [get]
func (h *ConnectionHandler) List(c *gin.Context) {
	list, err := h.relations.ListConnections(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// Requests 待我处理的连接请求
func (h *ConnectionHandler) Requests(c *gin.Context) {
	list, err := h.relations.ListIncomingRequests(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// Request 向 user_id 发起连接请求
// @Summary 发起连接请求
// @Tags 人脉
// @Param user_id path int true "目标用户ID"
// @Success 201 {object} response.Response{data=service.ConnectionView}
// @Failure 409 {object} response.Response
// @Router /api/v1/connections/{user_id} [post]
func (h *ConnectionHandler) Request(c *gin.Context) {
	targetID, err := paramID(c, "user_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	view, err := h.relations.RequestConnection(c.Request.Context(), jwt.GetUserID(c), targetID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "连接请求已发送", view)
}

// Respond 接受或拒绝 user_id 发来的请求
func (h *ConnectionHandler) Respond(c *gin.Context) {
	type req struct {
		Action string `json:"action" binding:"required,oneof=accept reject"`
	}
	requesterID, err := paramID(c, "user_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	var r req
	if err := bindJSON(c, &r); err != nil {
		response.FromError(c, err)
		return
	}
	view, err := h.relations.RespondToConnection(c.Request.Context(), jwt.GetUserID(c), requesterID, r.Action)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, view)
}

// Remove 删除与 user_id 的连接（任一方向、任意状态）
func (h *ConnectionHandler) Remove(c *gin.Context) {
	otherID, err := paramID(c, "user_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.relations.RemoveConnection(c.Request.Context(), jwt.GetUserID(c), otherID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "连接已删除", nil)
}
