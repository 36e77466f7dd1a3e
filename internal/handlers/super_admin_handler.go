package handlers

import (
	"erphub/internal/middleware"
	"erphub/internal/services"
	"erphub/pkg/config"
	"erphub/pkg/jwt"
	"erphub/pkg/response"

	"github.com/gin-gonic/gin"
)

// SuperAdminHandler 超级管理员认证与引导接口
type SuperAdminHandler struct {
	authService  *services.AuthService
	adminService *services.SuperAdminService
	jwtManager   *jwt.JWTManager
	superAdmin   config.SuperAdminConfig
	secureCookie bool
}

func NewSuperAdminHandler(authService *services.AuthService, adminService *services.SuperAdminService, jwtManager *jwt.JWTManager, superAdmin config.SuperAdminConfig, secureCookie bool) *SuperAdminHandler {
	return &SuperAdminHandler{
		authService:  authService,
		adminService: adminService,
		jwtManager:   jwtManager,
		superAdmin:   superAdmin,
		secureCookie: secureCookie,
	}
}

type SuperLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 超级管理员登录（super_admin_token Cookie）
func (h *SuperAdminHandler) Login(c *gin.Context) {
	var req SuperLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email/password 必填")
		return
	}

	admin, appErr := h.authService.SuperLogin(req.Email, req.Password)
	if appErr != nil {
		response.Fail(c, appErr)
		return
	}

	token, err := h.jwtManager.GenerateSuperToken(&jwt.SuperClaims{
		AdminID: admin.ID,
		Email:   admin.Email,
	})
	if err != nil {
		response.ServerError(c, "生成Token失败")
		return
	}

	maxAge := int(h.jwtManager.GetTokenDuration().Seconds())
	setSessionCookie(c, jwt.SuperCookieName, token, maxAge, h.secureCookie)

	response.OK(c, gin.H{"ok": true})
}

// Me 超级管理员会话检查，永远200
func (h *SuperAdminHandler) Me(c *gin.Context) {
	token, err := c.Cookie(jwt.SuperCookieName)
	if err != nil || token == "" {
		response.OK(c, gin.H{"session": nil})
		return
	}

	claims, err := h.jwtManager.VerifySuperToken(token)
	if err != nil {
		response.OK(c, gin.H{"session": nil})
		return
	}

	session, appErr := h.authService.ResolveSuperSession(claims)
	if appErr != nil {
		response.OK(c, gin.H{"session": nil})
		return
	}

	response.OK(c, gin.H{"session": session})
}

// Logout 超级管理员登出
func (h *SuperAdminHandler) Logout(c *gin.Context) {
	clearSessionCookie(c, jwt.SuperCookieName, h.secureCookie)
	response.OK(c, gin.H{"ok": true})
}

// Ensure 幂等创建引导超级管理员（凭证来自环境变量）
// 该接口位于Basic外闸之后，启动时也会执行同样的种子逻辑
func (h *SuperAdminHandler) Ensure(c *gin.Context) {
	created, err := h.adminService.EnsureSeed(&h.superAdmin)
	if err != nil {
		response.ServerError(c, "初始化失败")
		return
	}

	if created {
		response.OK(c, gin.H{"ok": true, "created": true})
		return
	}
	response.OK(c, gin.H{"ok": true, "already": true})
}

// currentSuperSession 读取中间件注入的超级管理员会话
func currentSuperSession(c *gin.Context) *services.SuperSession {
	return middleware.GetSuperSession(c)
}
