package services

import (
	"context"
	"fmt"
	"time"

	"erphub/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// 登录限流参数：同一邮箱+IP在窗口内最多尝试次数
const (
	loginLimitWindow   = 15 * time.Minute
	loginLimitAttempts = 10
)

// LoginLimiter 基于Redis的登录尝试限流器
// Redis不可用时放行并告警，限流属于加固措施，不能反过来把登录打挂
type LoginLimiter struct {
	client *redis.Client
	prefix string
}

func NewLoginLimiter(client *redis.Client, prefix string) *LoginLimiter {
	return &LoginLimiter{client: client, prefix: prefix}
}

func (l *LoginLimiter) key(email, ip string) string {
	return fmt.Sprintf("%s:login:%s:%s", l.prefix, email, ip)
}

// Allow 记一次尝试并判断是否放行
func (l *LoginLimiter) Allow(ctx context.Context, email, ip string) bool {
	if l == nil || l.client == nil {
		return true
	}

	key := l.key(email, ip)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		logger.GetLogger().Warnf("登录限流检查失败，放行: %v", err)
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, loginLimitWindow).Err(); err != nil {
			logger.GetLogger().Warnf("登录限流设置过期失败: %v", err)
		}
	}
	return count <= loginLimitAttempts
}

// Reset 登录成功后清零计数
func (l *LoginLimiter) Reset(ctx context.Context, email, ip string) {
	if l == nil || l.client == nil {
		return
	}
	if err := l.client.Del(ctx, l.key(email, ip)).Err(); err != nil {
		logger.GetLogger().Warnf("登录限流清零失败: %v", err)
	}
}
