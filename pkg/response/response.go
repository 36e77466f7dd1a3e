package response

import (
	"net/http"

	"erphub/pkg/errors"
	"erphub/pkg/pagination"

	"github.com/gin-gonic/gin"
)

// ErrorBody 统一错误返回格式
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ========== 基础返回方法 ==========

// OK 成功返回，body由调用方给定（如 gin.H{"ok": true}）
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 创建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// OKWithPage 分页成功返回
func OKWithPage(c *gin.Context, data interface{}, pageInfo *pagination.PageInfo) {
	c.JSON(http.StatusOK, gin.H{
		"data":      data,
		"page_info": pageInfo,
	})
}

// Fail 业务错误返回，状态码和错误码由AppError携带
func Fail(c *gin.Context, err *errors.AppError) {
	c.JSON(err.Status, ErrorBody{Error: err.Code, Message: err.Message})
}

// ========== HTTP错误快捷方法 ==========

func BadRequest(c *gin.Context, message string) {
	Fail(c, errors.InvalidParam(message))
}

func Unauthorized(c *gin.Context, message string) {
	Fail(c, errors.Unauthorized(message))
}

func Forbidden(c *gin.Context, message string) {
	Fail(c, errors.Forbidden(message))
}

func NotFound(c *gin.Context, message string) {
	Fail(c, errors.NotFound(message))
}

func ServerError(c *gin.Context, message string) {
	Fail(c, errors.ServerError(message))
}
