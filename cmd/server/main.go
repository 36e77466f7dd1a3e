package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"erphub/internal/database"
	"erphub/internal/router"
	"erphub/internal/services"
	"erphub/pkg/config"
	"erphub/pkg/jwt"
	"erphub/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置（缺少 JWT_SECRET 时直接失败）
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting erphub...")

	// 初始化数据库
	db, err := database.Initialize(cfg)
	if err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
	}()

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	// 超级管理员幂等种子（与 POST /api/super-admin/ensure 相同逻辑）
	superAdminService := services.NewSuperAdminService(db)
	created, err := superAdminService.EnsureSeed(&cfg.SuperAdmin)
	if err != nil {
		appLogger.Fatalf("Failed to ensure super admin: %v", err)
	}
	if created {
		appLogger.Infof("Super admin seeded: %s", cfg.SuperAdmin.Email)
	}

	// Redis连接（登录限流；连接失败时限流降级放行）
	redisClient := database.NewRedisClient(cfg)
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				appLogger.Error("Failed to close Redis:", err)
			}
		}
	}()

	// 会话签发器
	tokenDuration, err := time.ParseDuration(cfg.JWT.TokenDuration)
	if err != nil {
		appLogger.Fatalf("Invalid token duration %q: %v", cfg.JWT.TokenDuration, err)
	}
	jwtManager := jwt.NewJWTManager(cfg.JWT.SecretKey, tokenDuration)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 启动套餐到期巡检（仅记录日志，拦截在请求解析时进行）
	planMonitor := services.NewPlanMonitor(db)
	if err := planMonitor.Start(); err != nil {
		appLogger.Errorf("Failed to start plan monitor: %v", err)
		// 不影响主服务启动
	}
	defer planMonitor.Stop()

	// 设置路由
	r := router.SetupRouter(db, redisClient, cfg, jwtManager)

	// 启动服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	if err := server.Close(); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}
