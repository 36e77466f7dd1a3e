package handlers

import (
	"strconv"

	"erphub/internal/models"
	"erphub/internal/services"
	"erphub/pkg/pagination"
	"erphub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// CompanyHandler 租户管理接口（仅超级管理员）
type CompanyHandler struct {
	service     *services.CompanyService
	userService *services.CompanyUserService
}

func NewCompanyHandler(service *services.CompanyService, userService *services.CompanyUserService) *CompanyHandler {
	return &CompanyHandler{service: service, userService: userService}
}

type ProvisionCompanyRequest struct {
	BusinessName   string   `json:"business_name" binding:"required"`
	Email          string   `json:"email" binding:"required,email"`
	Password       string   `json:"password" binding:"required,min=4"`
	Phone          string   `json:"phone"`
	PlanDays       int      `json:"plan_days" binding:"required,gt=0"`
	EnabledModules []string `json:"enabled_modules"`
	MaxUsers       int      `json:"max_users"`
}

// UpdateCompanyRequest 部分更新：缺席字段不动
type UpdateCompanyRequest struct {
	BusinessName   *string   `json:"business_name"`
	Phone          *string   `json:"phone"`
	MaxUsers       *int      `json:"max_users"`
	IsActive       *bool     `json:"is_active"`
	EnabledModules *[]string `json:"enabled_modules"`
	Email          *string   `json:"email"`
	Password       *string   `json:"password"`
	PlanDays       *int      `json:"plan_days"`
}

type ConfirmCredentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return 0, false
	}
	return uint(id), true
}

func parseIDParam(c *gin.Context) (uint, bool) {
	return parseUintParam(c, "id")
}

// GetAll 租户列表（分页+筛选）
func (h *CompanyHandler) GetAll(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)
	status := c.Query("status")
	keyword := c.Query("keyword")

	companies, total, err := h.service.GetWithFiltersAndPage(status, keyword, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.OKWithPage(c, companies, pageInfo)
}

// Create 开通租户（同时创建所有者成员）
func (h *CompanyHandler) Create(c *gin.Context) {
	var req ProvisionCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 解析验证错误，提供更友好的提示
		if validationErr, ok := err.(validator.ValidationErrors); ok {
			errorMsg := "参数验证失败"
			for _, fieldErr := range validationErr {
				switch fieldErr.Field() {
				case "BusinessName":
					errorMsg = "企业名称不能为空"
				case "Email":
					errorMsg = "邮箱格式不正确"
				case "Password":
					errorMsg = "密码不能少于4位"
				case "PlanDays":
					errorMsg = "套餐天数必须大于0"
				}
				break
			}
			response.BadRequest(c, errorMsg)
			return
		}
		response.BadRequest(c, "请求格式错误")
		return
	}

	company, appErr := h.service.Provision(services.ProvisionCompanyParams{
		BusinessName:   req.BusinessName,
		Email:          req.Email,
		Password:       req.Password,
		Phone:          req.Phone,
		PlanDays:       req.PlanDays,
		EnabledModules: req.EnabledModules,
		MaxUsers:       req.MaxUsers,
	})
	if appErr != nil {
		response.Fail(c, appErr)
		return
	}

	response.Created(c, gin.H{"company": company})
}

// Update 租户部分更新
func (h *CompanyHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	company, appErr := h.service.Update(id, services.UpdateCompanyParams{
		BusinessName:   req.BusinessName,
		Phone:          req.Phone,
		MaxUsers:       req.MaxUsers,
		IsActive:       req.IsActive,
		EnabledModules: req.EnabledModules,
		Email:          req.Email,
		Password:       req.Password,
		PlanDays:       req.PlanDays,
	})
	if appErr != nil {
		response.Fail(c, appErr)
		return
	}

	response.OK(c, gin.H{"company": company})
}

// Delete 严格删除租户：操作者重新提交自己的凭证确认
func (h *CompanyHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req ConfirmCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "确认邮箱/密码必填")
		return
	}

	superSession := currentSuperSession(c)
	if superSession == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	if appErr := h.service.StrictDelete(superSession.AdminID, req.Email, req.Password, id); appErr != nil {
		response.Fail(c, appErr)
		return
	}

	response.OK(c, gin.H{"ok": true})
}

// GetUsers 查看指定租户的成员列表（超级管理员下钻视图）
func (h *CompanyHandler) GetUsers(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	users, appErr := h.userService.SuperListByCompany(id)
	if appErr != nil {
		response.Fail(c, appErr)
		return
	}
	response.OK(c, gin.H{"users": users})
}

type SuperToggleUserRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// UpdateUser 启停指定租户的成员（所有者行除外）
func (h *CompanyHandler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	userID, ok := parseUintParam(c, "user_id")
	if !ok {
		return
	}

	var req SuperToggleUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "is_active 必填")
		return
	}

	user, appErr := h.userService.SuperSetActive(id, userID, *req.IsActive)
	if appErr != nil {
		response.Fail(c, appErr)
		return
	}
	response.OK(c, gin.H{"user": user})
}

// GetModules 模块目录（分组顺序固定，供开通/编辑时选择）
func (h *CompanyHandler) GetModules(c *gin.Context) {
	response.OK(c, gin.H{"groups": models.AllModuleGroups})
}

// GetStats 租户统计
func (h *CompanyHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats()
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.OK(c, gin.H{"stats": stats})
}
