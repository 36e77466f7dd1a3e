package handlers

import (
	"erphub/internal/models"
	"erphub/internal/services"
	apperrors "erphub/pkg/errors"
	"erphub/pkg/jwt"
	"erphub/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler 租户成员认证接口
type AuthHandler struct {
	authService  *services.AuthService
	jwtManager   *jwt.JWTManager
	limiter      *services.LoginLimiter
	secureCookie bool
}

func NewAuthHandler(authService *services.AuthService, jwtManager *jwt.JWTManager, limiter *services.LoginLimiter, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		jwtManager:   jwtManager,
		limiter:      limiter,
		secureCookie: secureCookie,
	}
}

type LoginRequest struct {
	CompanyEmail string `json:"company_email"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
}

// Login 用户登录
// 成功：200 {ok:true} + erp_token Cookie；失败统一401无效凭证；
// 凭证正确但套餐过期：403 PLAN_EXPIRED（前端展示续费页）
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email/password 必填")
		return
	}

	if !h.limiter.Allow(c.Request.Context(), req.Email, c.ClientIP()) {
		response.Fail(c, apperrors.TooManyLogins())
		return
	}

	user, company, appErr := h.authService.Login(req.CompanyEmail, req.Email, req.Password)
	if appErr != nil {
		response.Fail(c, appErr)
		return
	}

	role := user.Role
	if role == "" {
		role = models.RoleStaff
	}

	// 签发时即做交集；后续请求仍会基于数据库重算，这里只是快照
	claims := &jwt.CompanyClaims{
		UserID:         user.ID,
		CompanyID:      company.ID,
		Email:          user.Email,
		Name:           user.Name,
		Role:           role,
		IsOwner:        user.IsOwner,
		AllowedModules: models.IntersectModules(user.AllowedModules, company.EnabledModules),
	}

	token, err := h.jwtManager.GenerateCompanyToken(claims)
	if err != nil {
		response.ServerError(c, "生成Token失败")
		return
	}

	h.limiter.Reset(c.Request.Context(), req.Email, c.ClientIP())

	maxAge := int(h.jwtManager.GetTokenDuration().Seconds())
	setSessionCookie(c, jwt.CompanyCookieName, token, maxAge, h.secureCookie)

	response.OK(c, gin.H{"ok": true})
}

// Me 会话检查
// 永远200；无会话或解析失败都是 {session: null}，缺席是数据不是错误
func (h *AuthHandler) Me(c *gin.Context) {
	token, err := c.Cookie(jwt.CompanyCookieName)
	if err != nil || token == "" {
		response.OK(c, gin.H{"session": nil})
		return
	}

	claims, err := h.jwtManager.VerifyCompanyToken(token)
	if err != nil {
		response.OK(c, gin.H{"session": nil})
		return
	}

	session, appErr := h.authService.ResolveSession(claims)
	if appErr != nil {
		response.OK(c, gin.H{"session": nil})
		return
	}

	response.OK(c, gin.H{"session": session})
}

// Logout 用户登出，覆盖Cookie为立即过期的空值
func (h *AuthHandler) Logout(c *gin.Context) {
	clearSessionCookie(c, jwt.CompanyCookieName, h.secureCookie)
	response.OK(c, gin.H{"ok": true})
}
