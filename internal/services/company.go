package services

import (
	"errors"
	"time"

	"erphub/internal/models"
	apperrors "erphub/pkg/errors"

	"gorm.io/gorm"
)

type CompanyService struct {
	db *gorm.DB
}

func NewCompanyService(db *gorm.DB) *CompanyService {
	return &CompanyService{db: db}
}

// CompanyStats 租户统计信息
type CompanyStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

// ProvisionCompanyParams 租户开通参数
type ProvisionCompanyParams struct {
	BusinessName   string
	Email          string
	Password       string
	Phone          string
	PlanDays       int
	EnabledModules []string
	MaxUsers       int
}

// UpdateCompanyParams 租户部分更新参数
// nil 表示该字段不动，调用方并发更新不同字段时互不覆盖
type UpdateCompanyParams struct {
	BusinessName   *string
	Phone          *string
	MaxUsers       *int
	IsActive       *bool
	EnabledModules *[]string
	Email          *string
	Password       *string
	PlanDays       *int
}

// GetWithFiltersAndPage 组合查询（分页版本）
func (s *CompanyService) GetWithFiltersAndPage(status, keyword string, page, pageSize int) ([]*models.Company, int64, error) {
	var companies []*models.Company
	var total int64

	query := s.db.Model(&models.Company{})

	if status == "active" {
		query = query.Where("is_active = ?", true)
	} else if status == "inactive" {
		query = query.Where("is_active = ?", false)
	}
	if keyword != "" {
		pattern := "%" + keyword + "%"
		query = query.Where("business_name LIKE ? OR email LIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&companies).Error
	if err != nil {
		return nil, 0, err
	}

	return companies, total, nil
}

// GetByID 根据ID获取租户
func (s *CompanyService) GetByID(id uint) (*models.Company, error) {
	var company models.Company
	err := s.db.First(&company, id).Error
	return &company, err
}

// Provision 开通租户：创建租户并同时创建所有者成员，单事务
// 所有者登录邮箱即租户邮箱，初始分配模块等于租户订阅模块
func (s *CompanyService) Provision(params ProvisionCompanyParams) (*models.Company, *apperrors.AppError) {
	if params.BusinessName == "" || params.Email == "" || params.Password == "" || params.PlanDays <= 0 {
		return nil, apperrors.InvalidParam("business_name/email/password/plan_days 必填")
	}

	email := normalizeEmail(params.Email)

	var count int64
	if err := s.db.Model(&models.Company{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.ServerError("开通失败")
	}
	if count > 0 {
		return nil, apperrors.Conflict("租户邮箱已存在")
	}

	maxUsers := params.MaxUsers
	if maxUsers < 1 {
		maxUsers = 1
	}

	now := time.Now()
	expiresAt := now.AddDate(0, 0, params.PlanDays)
	enabled := models.SanitizeModules(params.EnabledModules)

	company := &models.Company{
		BusinessName:   params.BusinessName,
		Email:          email,
		Phone:          params.Phone,
		PlanDays:       params.PlanDays,
		PlanStartsAt:   &now,
		PlanExpiresAt:  &expiresAt,
		EnabledModules: enabled,
		MaxUsers:       maxUsers,
		IsActive:       true,
	}

	owner := &models.CompanyUser{
		Email:          email,
		Name:           "Owner",
		Role:           models.RoleAdmin,
		IsOwner:        true,
		IsActive:       true,
		AllowedModules: enabled,
	}
	if err := owner.SetPassword(params.Password); err != nil {
		return nil, apperrors.ServerError("开通失败")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(company).Error; err != nil {
			return err
		}
		owner.CompanyID = company.ID
		return tx.Create(owner).Error
	})
	if err != nil {
		return nil, apperrors.ServerError("开通失败")
	}

	return company, nil
}

// Update 租户部分更新（仅超级管理员调用）
// 租户邮箱/密码变更同步到所有者成员；enabled_modules 收缩时不回写任何
// 成员的 allowed_modules —— 交集在会话解析时重算，吊销下次请求即生效
func (s *CompanyService) Update(id uint, params UpdateCompanyParams) (*models.Company, *apperrors.AppError) {
	var company models.Company
	if err := s.db.First(&company, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("租户不存在")
		}
		return nil, apperrors.ServerError("查询失败")
	}

	updates := map[string]interface{}{}
	ownerUpdates := map[string]interface{}{}

	if params.BusinessName != nil {
		updates["business_name"] = *params.BusinessName
	}
	if params.Phone != nil {
		updates["phone"] = *params.Phone
	}
	if params.MaxUsers != nil {
		updates["max_users"] = *params.MaxUsers
	}
	if params.IsActive != nil {
		updates["is_active"] = *params.IsActive
	}
	if params.EnabledModules != nil {
		updates["enabled_modules"] = models.SanitizeModules(*params.EnabledModules)
	}
	if params.PlanDays != nil {
		if *params.PlanDays <= 0 {
			return nil, apperrors.InvalidParam("plan_days 必须大于0")
		}
		// 续费语义：窗口从当前时刻重新起算
		now := time.Now()
		expiresAt := now.AddDate(0, 0, *params.PlanDays)
		updates["plan_days"] = *params.PlanDays
		updates["plan_starts_at"] = now
		updates["plan_expires_at"] = expiresAt
	}
	if params.Email != nil {
		newEmail := normalizeEmail(*params.Email)
		var clash int64
		if err := s.db.Model(&models.Company{}).Where("email = ? AND id <> ?", newEmail, id).Count(&clash).Error; err != nil {
			return nil, apperrors.ServerError("更新失败")
		}
		if clash > 0 {
			return nil, apperrors.Conflict("租户邮箱已被占用")
		}
		updates["email"] = newEmail
		ownerUpdates["email"] = newEmail
	}
	if params.Password != nil {
		if len(*params.Password) < 4 {
			return nil, apperrors.InvalidParam("密码长度不足")
		}
		hashed := models.CompanyUser{}
		if err := hashed.SetPassword(*params.Password); err != nil {
			return nil, apperrors.ServerError("更新失败")
		}
		ownerUpdates["password_hash"] = hashed.PasswordHash
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Company{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		if len(ownerUpdates) > 0 {
			if err := tx.Model(&models.CompanyUser{}).
				Where("company_id = ? AND is_owner = ?", id, true).
				Updates(ownerUpdates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.ServerError("更新失败")
	}

	if err := s.db.First(&company, id).Error; err != nil {
		return nil, apperrors.ServerError("查询失败")
	}
	return &company, nil
}

// StrictDelete 严格删除租户
// 除有效会话外，操作者必须在同一请求内重新提交自己的邮箱+密码；
// 成员先删、租户后删，同一事务内完成，客户端永远观察不到悬挂成员
func (s *CompanyService) StrictDelete(actorID uint, confirmEmail, confirmPassword string, companyID uint) *apperrors.AppError {
	var actor models.SuperAdmin
	if err := s.db.First(&actor, actorID).Error; err != nil {
		return apperrors.Unauthorized("会话已失效")
	}
	// 不区分邮箱错还是密码错
	if normalizeEmail(confirmEmail) != actor.Email || !actor.CheckPassword(confirmPassword) {
		return apperrors.Unauthorized("确认凭证无效")
	}

	var company models.Company
	if err := s.db.First(&company, companyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("租户不存在")
		}
		return apperrors.ServerError("查询失败")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_id = ?", companyID).Delete(&models.CompanyUser{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Company{}, companyID).Error
	})
	if err != nil {
		return apperrors.ServerError("删除失败")
	}
	return nil
}

// GetStats 租户统计
func (s *CompanyService) GetStats() (*CompanyStats, error) {
	var stats CompanyStats
	if err := s.db.Model(&models.Company{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Company{}).Where("is_active = ?", true).Count(&stats.Active).Error; err != nil {
		return nil, err
	}
	stats.Inactive = stats.Total - stats.Active
	return &stats, nil
}
