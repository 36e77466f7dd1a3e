package database

import (
	"fmt"

	"erphub/pkg/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient 创建Redis客户端（登录限流用）
// 连接失败不在这里探测，限流器对Redis故障做放行降级
func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
