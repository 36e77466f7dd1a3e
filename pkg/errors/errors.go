package errors

import "net/http"

// ========== 业务错误码定义 ==========

// 机器可读错误码，随响应体返回给客户端
const (
	CodeUnauthorized   = "UNAUTHORIZED"     // 无会话/会话失效/租户或成员不存在或停用
	CodePlanExpired    = "PLAN_EXPIRED"     // 套餐过期，前端需要展示续费页而不是跳登录
	CodeNoModuleAccess = "NO_MODULE_ACCESS" // 无模块访问权限
	CodeForbidden      = "FORBIDDEN"        // 角色/所有者规则不满足
	CodeNotFound       = "NOT_FOUND"        // 记录不存在或不在调用方租户内（二者不可区分）
	CodeConflict       = "CONFLICT"         // 唯一性冲突
	CodeInvalidParam   = "INVALID_PARAM"    // 请求参数错误
	CodeUserLimit      = "USER_LIMIT"       // 租户用户配额已满
	CodeTooManyLogins  = "TOO_MANY_LOGINS"  // 登录尝试过于频繁
	CodeServerError    = "SERVER_ERROR"     // 内部错误，不暴露细节
)

// AppError 统一业务错误
// 贯穿服务层向上传递，由响应边界统一转换为JSON，业务代码不手写状态码
type AppError struct {
	Code    string `json:"error"`
	Status  int    `json:"-"`
	Message string `json:"message,omitempty"`
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

func New(code string, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message}
}

// ========== 快捷构造 ==========

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

func PlanExpired() *AppError {
	return New(CodePlanExpired, http.StatusForbidden, "套餐已过期")
}

func NoModuleAccess(moduleKey string) *AppError {
	return New(CodeNoModuleAccess, http.StatusForbidden, "无权访问模块 "+moduleKey)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, http.StatusForbidden, message)
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, http.StatusNotFound, message)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, http.StatusConflict, message)
}

func InvalidParam(message string) *AppError {
	return New(CodeInvalidParam, http.StatusBadRequest, message)
}

func UserLimit() *AppError {
	return New(CodeUserLimit, http.StatusForbidden, "用户配额已满，请升级套餐")
}

func TooManyLogins() *AppError {
	return New(CodeTooManyLogins, http.StatusTooManyRequests, "登录尝试过于频繁，请稍后再试")
}

func ServerError(message string) *AppError {
	return New(CodeServerError, http.StatusInternalServerError, message)
}
