package middleware

import (
	"erphub/internal/services"
	"erphub/pkg/jwt"
	"erphub/pkg/response"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextSessionKey      = "session"
	ContextSuperSessionKey = "super_session"
)

// AuthMiddleware 权限中间件
// 所有特权接口都经过这里：Cookie里的令牌只提供查找键，
// 会话每次都由 AuthService 回读数据库重建，吊销和停用下一个请求即生效
type AuthMiddleware struct {
	authService *services.AuthService
	jwtManager  *jwt.JWTManager
}

func NewAuthMiddleware(authService *services.AuthService, jwtManager *jwt.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		jwtManager:  jwtManager,
	}
}

// RequireCompanyAuth 租户成员会话校验
func (m *AuthMiddleware) RequireCompanyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(jwt.CompanyCookieName)
		if err != nil || token == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		claims, err := m.jwtManager.VerifyCompanyToken(token)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		// 基于数据库实时状态重建权威会话
		session, appErr := m.authService.ResolveSession(claims)
		if appErr != nil {
			response.Fail(c, appErr)
			c.Abort()
			return
		}

		c.Set(ContextSessionKey, session)
		c.Next()
	}
}

// RequireModule 要求会话拥有指定模块的访问权
// 必须在 RequireCompanyAuth 之后使用
func (m *AuthMiddleware) RequireModule(moduleKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := GetSession(c)
		if session == nil {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if appErr := services.RequireModule(session, moduleKey); appErr != nil {
			response.Fail(c, appErr)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireCompanyAdmin 要求所有者或ADMIN角色
func (m *AuthMiddleware) RequireCompanyAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := GetSession(c)
		if session == nil {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if appErr := services.RequireAdmin(session); appErr != nil {
			response.Fail(c, appErr)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireSuperAuth 超级管理员会话校验（独立Cookie、独立主体空间）
func (m *AuthMiddleware) RequireSuperAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(jwt.SuperCookieName)
		if err != nil || token == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		claims, err := m.jwtManager.VerifySuperToken(token)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		superSession, appErr := m.authService.ResolveSuperSession(claims)
		if appErr != nil {
			response.Fail(c, appErr)
			c.Abort()
			return
		}

		c.Set(ContextSuperSessionKey, superSession)
		c.Next()
	}
}

// GetSession 从上下文取权威会话
func GetSession(c *gin.Context) *services.AuthSession {
	v, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	session, _ := v.(*services.AuthSession)
	return session
}

// GetSuperSession 从上下文取超级管理员会话
func GetSuperSession(c *gin.Context) *services.SuperSession {
	v, exists := c.Get(ContextSuperSessionKey)
	if !exists {
		return nil
	}
	session, _ := v.(*services.SuperSession)
	return session
}
