package handler

import (
	"hustconnect/internal/service"
	"hustconnect/pkg/jwt"
	"hustconnect/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service   *service.UserService
	relations *service.RelationshipService
}

func NewUserHandler(s *service.UserService, relations *service.RelationshipService) *UserHandler {
	return &UserHandler{service: s, relations: relations}
}

// Register 用户注册
// @Summary 用户注册
// @Tags 用户
// @Accept json
// @Produce json
// @Success 201 {object} response.Response{data=service.AuthResult}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/auth/register [post]
func (h *UserHandler) Register(c *gin.Context) {
	type req struct {
		Name     string `json:"name" binding:"required,notblank,max=100"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role" binding:"omitempty,oneof=normal hr"`
	}
	var r req
	if err := bindJSON(c, &r); err != nil {
		response.FromError(c, err)
		return
	}
	res, err := h.service.Register(c.Request.Context(), r.Name, r.Email, r.Password, r.Role)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "注册成功", res)
}

// Login 用户登录
// @Summary 用户登录
// @Tags 用户
// @Accept json
// @Produce json
// @Success 200 {object} response.Response{data=service.AuthResult}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	type req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	var r req
	if err := bindJSON(c, &r); err != nil {
		response.FromError(c, err)
		return
	}
	res, err := h.service.Login(c.Request.Context(), r.Email, r.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "登录成功", res)
}

// Me 当前用户资料（需要JWT认证）
func (h *UserHandler) Me(c *gin.Context) {
	me, err := h.service.Me(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, me)
}

// Presence 检查指定用户是否在线（需要JWT认证）
func (h *UserHandler) Presence(c *gin.Context) {
	userID, err := paramID(c, "user_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	presence, err := h.service.Presence(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, presence)
}

// Profile 他人主页，附带连接状态和连接数
// @Summary 用户主页
// @Tags 用户
// @Param user_id path int true "用户ID"
// @Success 200 {object} response.Response{data=service.ProfileView}
// @Failure 404 {object} response.Response
// @Router /api/v1/users/{user_id} [get]
func (h *UserHandler) Profile(c *gin.Context) {
	userID, err := paramID(c, "user_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	profile, err := h.relations.UserProfile(c.Request.Context(), jwt.GetUserID(c), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, profile)
}
