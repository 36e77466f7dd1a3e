package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"erphub/internal/models"
	"erphub/internal/services"
	"erphub/pkg/config"
	"erphub/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// 受保护页面前缀到模块键的映射表
// /dashboard 不在表内：有有效会话即可访问，不要求模块
var moduleRouteMap = []struct {
	Prefix string
	Module string
}{
	{"/crm/leads", models.ModuleCRMLeads},
	{"/crm/customers", models.ModuleCRMCustomers},
	{"/crm/deals", models.ModuleCRMDeals},

	{"/erp/sales", models.ModuleERPSales},
	{"/erp/inventory", models.ModuleERPInventory},
	{"/erp/purchasing", models.ModuleERPPurchasing},
	{"/erp/accounts", models.ModuleERPAccounts},

	{"/reports", models.ModuleReports},
	{"/settings", models.ModuleSettings},
}

// EdgeGate 页面路由边缘闸门
// 在任何处理器执行之前做粗粒度拦截：无会话跳登录、无模块权限跳回工作台。
// 与API中间件一样走数据库实时解析，不信任Cookie里缓存的模块列表
type EdgeGate struct {
	authService *services.AuthService
	jwtManager  *jwt.JWTManager
	superAdmin  config.SuperAdminConfig
}

func NewEdgeGate(authService *services.AuthService, jwtManager *jwt.JWTManager, superAdmin config.SuperAdminConfig) *EdgeGate {
	return &EdgeGate{
		authService: authService,
		jwtManager:  jwtManager,
		superAdmin:  superAdmin,
	}
}

// PageGuard 客户端应用页面守卫
func (g *EdgeGate) PageGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := g.resolve(c)
		if session == nil {
			c.Redirect(http.StatusFound, "/auth/login")
			c.Abort()
			return
		}

		path := c.Request.URL.Path

		// 工作台只要有有效会话
		if strings.HasPrefix(path, "/dashboard") {
			c.Set(ContextSessionKey, session)
			c.Next()
			return
		}

		for _, entry := range moduleRouteMap {
			if strings.HasPrefix(path, entry.Prefix) {
				if services.RequireModule(session, entry.Module) != nil {
					c.Redirect(http.StatusFound, "/dashboard?error=no_access")
					c.Abort()
					return
				}
				break
			}
		}

		c.Set(ContextSessionKey, session)
		c.Next()
	}
}

// resolve 从Cookie解析权威会话，任何失败都返回nil
func (g *EdgeGate) resolve(c *gin.Context) *services.AuthSession {
	token, err := c.Cookie(jwt.CompanyCookieName)
	if err != nil || token == "" {
		return nil
	}
	claims, err := g.jwtManager.VerifyCompanyToken(token)
	if err != nil {
		return nil
	}
	session, appErr := g.authService.ResolveSession(claims)
	if appErr != nil {
		return nil
	}
	return session
}

// SuperBasicGuard 超级管理员页面的静态凭证外闸
// 只做粗粒度的HTTP Basic校验（环境变量凭证），
// 细粒度校验仍由API层的数据库会话完成
func (g *EdgeGate) SuperBasicGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.superAdmin.Email == "" || g.superAdmin.Password == "" {
			c.String(http.StatusInternalServerError, "Missing SEED_SUPER_EMAIL/SEED_SUPER_PASS in env")
			c.Abort()
			return
		}

		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Basic ") {
			g.challenge(c)
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
		if err != nil {
			g.challenge(c)
			return
		}

		idx := strings.Index(string(decoded), ":")
		if idx < 0 {
			g.challenge(c)
			return
		}

		email := string(decoded)[:idx]
		pass := string(decoded)[idx+1:]
		// 恒定时间比较，避免凭证逐字节试探
		emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(g.superAdmin.Email)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(g.superAdmin.Password)) == 1
		if !emailOK || !passOK {
			g.challenge(c)
			return
		}

		c.Next()
	}
}

func (g *EdgeGate) challenge(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="Super Admin"`)
	c.String(http.StatusUnauthorized, "Auth required")
	c.Abort()
}
