package router

import (
	"net/http"
	"time"

	"erphub/internal/handlers"
	"erphub/internal/middleware"
	"erphub/internal/models"
	"erphub/internal/services"
	"erphub/pkg/config"
	"erphub/pkg/jwt"
	"erphub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 设置路由
func SetupRouter(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, jwtManager *jwt.JWTManager) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(cfg))

	registerRoutes(router, db, redisClient, cfg, jwtManager)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, db *gorm.DB, redisClient *redis.Client, cfg *config.Config, jwtManager *jwt.JWTManager) {

	authService := services.NewAuthService(db)
	companyService := services.NewCompanyService(db)
	companyUserService := services.NewCompanyUserService(db)
	superAdminService := services.NewSuperAdminService(db)
	limiter := services.NewLoginLimiter(redisClient, cfg.Redis.Prefix)

	auth := middleware.NewAuthMiddleware(authService, jwtManager)
	edge := middleware.NewEdgeGate(authService, jwtManager, cfg.SuperAdmin)

	secureCookie := cfg.Server.Mode == "release"

	// API路由组
	api := router.Group("/api")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// 企业用户认证（Cookie会话）
		authHandler := handlers.NewAuthHandler(authService, jwtManager, limiter, secureCookie)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/me", authHandler.Me) // 无会话也返回200，session为null
			authGroup.POST("/logout", authHandler.Logout)
		}

		// 超级管理员
		superHandler := handlers.NewSuperAdminHandler(authService, superAdminService, jwtManager, cfg.SuperAdmin, secureCookie)
		companyHandler := handlers.NewCompanyHandler(companyService, companyUserService)
		superGroup := api.Group("/super-admin")
		{
			superGroup.POST("/login", superHandler.Login)
			superGroup.GET("/me", superHandler.Me)
			superGroup.POST("/logout", superHandler.Logout)
			// 幂等种子，位于Basic外闸之后；启动时也会执行同样逻辑
			superGroup.POST("/ensure", edge.SuperBasicGuard(), superHandler.Ensure)

			// 🔒 租户管理（需要超级管理员会话，每次请求回库校验）
			companies := superGroup.Group("/companies", auth.RequireSuperAuth())
			{
				companies.GET("", companyHandler.GetAll)
				companies.POST("", companyHandler.Create)
				companies.PATCH("/:id", companyHandler.Update)
				companies.DELETE("/:id", companyHandler.Delete)
				companies.GET("/stats", companyHandler.GetStats)

				// 成员下钻：查看列表、启停（所有者行除外）
				companies.GET("/:id/users", companyHandler.GetUsers)
				companies.PATCH("/:id/users/:user_id", companyHandler.UpdateUser)
			}

			// 模块目录（开通/编辑表单的数据源）
			superGroup.GET("/modules", auth.RequireSuperAuth(), companyHandler.GetModules)
		}

		// 🔒 租户自助（企业会话，每次请求回库重算有效模块）
		companyUserHandler := handlers.NewCompanyUserHandler(companyUserService)
		companyGroup := api.Group("/company", auth.RequireCompanyAuth())
		{
			companyGroup.GET("/profile", companyUserHandler.GetProfile)
			companyGroup.PATCH("/profile", companyUserHandler.UpdateProfile)

			users := companyGroup.Group("/users", auth.RequireCompanyAdmin())
			{
				users.GET("", companyUserHandler.List)
				users.POST("", companyUserHandler.Create)
				users.PATCH("/:id", companyUserHandler.Update)
				users.DELETE("/:id", companyUserHandler.Delete)
			}
		}
	}

	registerPageRoutes(router, edge)
}

// 页面路由：边缘按路径前缀校验模块权限后返回占位壳
// 前端渲染不在本服务范围内
func registerPageRoutes(router *gin.Engine, edge *middleware.EdgeGate) {
	router.GET("/auth/login", func(c *gin.Context) {
		pageShell(c, "login")
	})

	guarded := router.Group("/", edge.PageGuard())
	{
		guarded.GET("/dashboard", pageHandler(models.ModuleDashboard))
		guarded.GET("/crm/leads", pageHandler(models.ModuleCRMLeads))
		guarded.GET("/crm/customers", pageHandler(models.ModuleCRMCustomers))
		guarded.GET("/crm/deals", pageHandler(models.ModuleCRMDeals))
		guarded.GET("/erp/sales", pageHandler(models.ModuleERPSales))
		guarded.GET("/erp/inventory", pageHandler(models.ModuleERPInventory))
		guarded.GET("/erp/purchasing", pageHandler(models.ModuleERPPurchasing))
		guarded.GET("/erp/accounts", pageHandler(models.ModuleERPAccounts))
		guarded.GET("/reports", pageHandler(models.ModuleReports))
		guarded.GET("/settings", pageHandler(models.ModuleSettings))
	}

	superPages := router.Group("/super-admin", edge.SuperBasicGuard())
	{
		superPages.GET("", pageHandler("SUPER_ADMIN"))
		superPages.GET("/*page", pageHandler("SUPER_ADMIN"))
	}
}

func pageHandler(page string) gin.HandlerFunc {
	return func(c *gin.Context) {
		pageShell(c, page)
	}
}

func pageShell(c *gin.Context, page string) {
	c.JSON(http.StatusOK, gin.H{"page": page})
}

func healthCheck(c *gin.Context) {
	data := gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "erphub",
		"version":   "1.0.0",
	}
	response.OK(c, data)
}

func ping(c *gin.Context) {
	response.OK(c, gin.H{"message": "pong"})
}
