package handlers

import (
	"erphub/internal/middleware"
	"erphub/internal/services"
	"erphub/pkg/response"

	"github.com/gin-gonic/gin"
)

// CompanyUserHandler 租户内成员管理接口
type CompanyUserHandler struct {
	service *services.CompanyUserService
}

func NewCompanyUserHandler(service *services.CompanyUserService) *CompanyUserHandler {
	return &CompanyUserHandler{service: service}
}

type CreateCompanyUserRequest struct {
	Email          string   `json:"email" binding:"required,email"`
	Password       string   `json:"password" binding:"required,min=4"`
	Name           string   `json:"name" binding:"required"`
	Phone          string   `json:"phone"`
	Role           string   `json:"role"`
	AllowedModules []string `json:"allowed_modules"`
}

type UpdateCompanyUserRequest struct {
	Name           *string   `json:"name"`
	Phone          *string   `json:"phone"`
	Email          *string   `json:"email"`
	Role           *string   `json:"role"`
	AllowedModules *[]string `json:"allowed_modules"`
	Password       *string   `json:"password"`
	IsActive       *bool     `json:"is_active"`
}

type UpdateProfileRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// List 成员列表
func (h *CompanyUserHandler) List(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	users, err := h.service.ListByCompany(session.CompanyID)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.OK(c, gin.H{"users": users})
}

// Create 新建成员（管理员，受席位上限约束）
func (h *CompanyUserHandler) Create(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	var req CreateCompanyUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email/password/name 必填")
		return
	}

	user, appErr := h.service.Create(session, services.CreateCompanyUserParams{
		Email:          req.Email,
		Password:       req.Password,
		Name:           req.Name,
		Phone:          req.Phone,
		Role:           req.Role,
		AllowedModules: req.AllowedModules,
	})
	if appErr != nil {
		response.Fail(c, appErr)
		return
	}

	response.Created(c, gin.H{"user": user})
}

// Update 成员部分更新
func (h *CompanyUserHandler) Update(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateCompanyUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	user, appErr := h.service.Update(session, id, services.UpdateCompanyUserParams{
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		Role:           req.Role,
		AllowedModules: req.AllowedModules,
		Password:       req.Password,
		IsActive:       req.IsActive,
	})
	if appErr != nil {
		response.Fail(c, appErr)
		return
	}

	response.OK(c, gin.H{"user": user})
}

// Delete 严格删除成员：操作者重新提交自己的凭证确认
func (h *CompanyUserHandler) Delete(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req ConfirmCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "确认邮箱/密码必填")
		return
	}

	if appErr := h.service.StrictDelete(session, id, req.Email, req.Password); appErr != nil {
		response.Fail(c, appErr)
		return
	}

	response.OK(c, gin.H{"ok": true})
}

// GetProfile 所有者查看企业资料
func (h *CompanyUserHandler) GetProfile(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	user, appErr := h.service.GetProfile(session)
	if appErr != nil {
		response.Fail(c, appErr)
		return
	}
	response.OK(c, gin.H{"profile": user})
}

// UpdateProfile 所有者自助更新登录凭证
func (h *CompanyUserHandler) UpdateProfile(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	user, appErr := h.service.UpdateProfile(session, services.UpdateProfileParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if appErr != nil {
		response.Fail(c, appErr)
		return
	}

	response.OK(c, gin.H{"profile": user})
}
