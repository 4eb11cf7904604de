package handler

import (
	"context"
	"time"

	"hustconnect/pkg/jwt"
	"hustconnect/pkg/ratelimit"
	"hustconnect/pkg/response"
	"hustconnect/pkg/websocket"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Handlers 路由依赖
type Handlers struct {
	JWT          *jwt.JWTService
	Limiter      *ratelimit.Limiter // 为 nil 时不限流
	Health       func(ctx context.Context) error
	User         *UserHandler
	Connection   *ConnectionHandler
	Company      *CompanyHandler
	Conversation *ConversationHandler
	Notification *NotificationHandler
	WebSocket    *websocket.Handler
}

// RegisterRoutes 注册全部路由
func RegisterRoutes(router *gin.Engine, h Handlers) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		if h.Health != nil {
			if err := h.Health(c.Request.Context()); err != nil {
				status = "db-down"
			}
		}
		response.Success(c, gin.H{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if h.WebSocket != nil {
		router.GET("/ws", h.WebSocket.ServeWS)
	}

	write := func(c *gin.Context) { c.Next() }
	if h.Limiter != nil {
		write = h.Limiter.Middleware()
	}

	v1 := router.Group("/api/v1")
	v1.Use(gzip.Gzip(gzip.DefaultCompression))

	auth := v1.Group("/auth")
	{
		auth.POST("/register", write, h.User.Register)
		auth.POST("/login", write, h.User.Login)
	}

	// 以下接口需要认证
	api := v1.Group("")
	api.Use(h.JWT.AuthMiddleware())

	users := api.Group("/users")
	{
		users.GET("/me", h.User.Me)
		users.GET("/:user_id", h.User.Profile)
		users.GET("/:user_id/presence", h.User.Presence)
	}

	connections := api.Group("/connections")
	{
		connections.GET("", h.Connection.List)
		connections.GET("/requests", h.Connection.Requests)
		connections.POST("/:user_id", write, h.Connection.Request)
		connections.PUT("/:user_id", write, h.Connection.Respond)
		connections.DELETE("/:user_id", write, h.Connection.Remove)
	}

	// 静态段优先于 :company_id 匹配
	companies := api.Group("/companies")
	{
		companies.POST("", write, h.Company.Create)
		companies.GET("/my-company", h.Company.MyCompany)
		companies.GET("/hr-members", h.Company.Members)
		companies.GET("/my-join-request", h.Company.MyJoinRequest)
		companies.DELETE("/my-join-request", write, h.Company.CancelJoinRequest)
		companies.GET("/join-requests", h.Company.JoinRequests)
		companies.PUT("/join-requests/:request_id", write, h.Company.ReviewJoinRequest)
		companies.GET("/:company_id", h.Company.Get)
		companies.POST("/:company_id/follow", write, h.Company.ToggleFollow)
		companies.GET("/:company_id/followers", h.Company.Followers)
		companies.POST("/:company_id/request-join", write, h.Company.RequestJoin)
	}

	conversations := api.Group("/conversations")
	{
		conversations.GET("", h.Conversation.List)
		conversations.POST("", write, h.Conversation.Create)
		conversations.GET("/:conversation_id", h.Conversation.Open)
		conversations.POST("/:conversation_id/messages", write, h.Conversation.Send)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", h.Notification.List)
		notifications.GET("/unread-count", h.Notification.UnreadCount)
		notifications.POST("/mark-all-read", write, h.Notification.MarkAllRead)
		notifications.POST("/:id/read", write, h.Notification.MarkRead)
		notifications.DELETE("/:id", write, h.Notification.Delete)
	}
}
