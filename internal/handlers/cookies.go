package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// setSessionCookie 写入会话Cookie
// HTTP-only + SameSite=Lax，secure由运行模式决定，路径固定为 /
func setSessionCookie(c *gin.Context, name, token string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, maxAge, "/", "", secure, true)
}

// clearSessionCookie 用立即过期的空值覆盖会话Cookie（登出）
func clearSessionCookie(c *gin.Context, name string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", secure, true)
}
