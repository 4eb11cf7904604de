package jwt

import (
	"strings"

	"hustconnect/pkg/logger"
	"hustconnect/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// identityKey 调用者身份在gin.Context中的键名
const identityKey = "identity"

// Identity 令牌中携带的调用者身份
type Identity struct {
	UserID uint
	Name   string
	Role   string
}

// Authenticate 校验令牌并取出调用者身份
func (s *JWTService) Authenticate(token string) (Identity, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return Identity{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: userID, Name: claims.Name(), Role: claims.Role()}, nil
}

// BearerToken 解析 "Bearer <token>"，格式不符时返回空串
func BearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware JWT认证中间件；调用者身份只来自令牌
func (s *JWTService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Unauthorized(c, "缺少或格式错误的Authorization请求头")
			c.Abort()
			return
		}

		id, err := s.Authenticate(token)
		if err != nil {
			logger.Warn("JWT验证失败", zap.Error(err), zap.String("path", c.Request.URL.Path))
			response.Unauthorized(c, "token无效或已过期")
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// CurrentIdentity 当前请求的调用者身份
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// GetUserID 从gin.Context中获取用户ID，未认证时返回0
func GetUserID(c *gin.Context) uint {
	id, _ := CurrentIdentity(c)
	return id.UserID
}
