package services

import (
	"errors"

	"erphub/internal/models"
	apperrors "erphub/pkg/errors"

	"gorm.io/gorm"
)

type CompanyUserService struct {
	db *gorm.DB
}

func NewCompanyUserService(db *gorm.DB) *CompanyUserService {
	return &CompanyUserService{db: db}
}

// CreateCompanyUserParams 成员创建参数
type CreateCompanyUserParams struct {
	Email          string
	Password       string
	Name           string
	Phone          string
	Role           string
	AllowedModules []string
}

// UpdateCompanyUserParams 成员部分更新参数
// nil 表示不动该字段；并发更新不同字段互不覆盖
type UpdateCompanyUserParams struct {
	Name           *string
	Phone          *string
	Email          *string
	Role           *string
	AllowedModules *[]string
	Password       *string
	IsActive       *bool
}

// UpdateProfileParams 所有者自助资料更新
type UpdateProfileParams struct {
	Email    *string
	Password *string
}

// ListByCompany 列出租户内全部成员（按创建时间倒序）
func (s *CompanyUserService) ListByCompany(companyID uint) ([]*models.CompanyUser, error) {
	var users []*models.CompanyUser
	err := s.db.Where("company_id = ?", companyID).Order("created_at DESC").Find(&users).Error
	return users, err
}

// GetByID 租户内查找成员；跨租户的ID与不存在的ID同样返回NotFound
func (s *CompanyUserService) GetByID(companyID, userID uint) (*models.CompanyUser, *apperrors.AppError) {
	var user models.CompanyUser
	err := s.db.Where("id = ? AND company_id = ?", userID, companyID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("用户不存在")
		}
		return nil, apperrors.ServerError("查询失败")
	}
	return &user, nil
}

// ActiveCount 活跃成员数（配额按活跃成员计算）
func (s *CompanyUserService) ActiveCount(companyID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.CompanyUser{}).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Count(&count).Error
	return count, err
}

// Create 创建员工成员（管理员/所有者操作）
// 配额按活跃成员数校验；分配模块永远做安全赋值，
// 不可能授予租户未订阅的模块
func (s *CompanyUserService) Create(session *AuthSession, params CreateCompanyUserParams) (*models.CompanyUser, *apperrors.AppError) {
	if appErr := RequireAdmin(session); appErr != nil {
		return nil, appErr
	}
	if params.Email == "" || params.Password == "" {
		return nil, apperrors.InvalidParam("email/password 必填")
	}

	var company models.Company
	if err := s.db.First(&company, session.CompanyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("租户不存在")
		}
		return nil, apperrors.ServerError("创建失败")
	}

	active, err := s.ActiveCount(session.CompanyID)
	if err != nil {
		return nil, apperrors.ServerError("创建失败")
	}
	if active >= int64(company.MaxUsers) {
		return nil, apperrors.UserLimit()
	}

	email := normalizeEmail(params.Email)
	var clash int64
	if err := s.db.Model(&models.CompanyUser{}).
		Where("company_id = ? AND email = ?", session.CompanyID, email).
		Count(&clash).Error; err != nil {
		return nil, apperrors.ServerError("创建失败")
	}
	if clash > 0 {
		return nil, apperrors.Conflict("邮箱在本租户内已存在")
	}

	role := models.RoleStaff
	if params.Role == models.RoleAdmin {
		role = models.RoleAdmin
	}

	user := &models.CompanyUser{
		CompanyID:      session.CompanyID,
		Email:          email,
		Name:           params.Name,
		Role:           role,
		IsOwner:        false,
		IsActive:       true,
		AllowedModules: models.IntersectModules(params.AllowedModules, company.EnabledModules),
	}
	if params.Phone != "" {
		phone := params.Phone
		user.Phone = &phone
	}
	if err := user.SetPassword(params.Password); err != nil {
		return nil, apperrors.ServerError("创建失败")
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, apperrors.ServerError("创建失败")
	}
	return user, nil
}

// Update 成员部分更新
// 守护规则：
//   - 目标是所有者时仅所有者本人会话可改，且角色/启停永远不可改
//   - 角色变更（STAFF↔ADMIN）仅管理员/所有者可发起
//   - 分配模块做安全赋值（∩ 租户订阅）
//   - 启停：不可停用自己；所有者行不可停用
//   - 所有者邮箱变更同步回租户记录（同一事务）
//
// 只更新给定字段，并发的不相交PATCH不会互相覆盖
func (s *CompanyUserService) Update(session *AuthSession, targetID uint, params UpdateCompanyUserParams) (*models.CompanyUser, *apperrors.AppError) {
	target, appErr := s.GetByID(session.CompanyID, targetID)
	if appErr != nil {
		return nil, appErr
	}

	if target.IsOwner && !session.IsOwner {
		return nil, apperrors.Forbidden("仅所有者可编辑所有者账号")
	}

	updates := map[string]interface{}{}
	companyUpdates := map[string]interface{}{}

	if params.Name != nil {
		updates["name"] = *params.Name
	}
	if params.Phone != nil {
		updates["phone"] = *params.Phone
	}
	if params.Email != nil {
		newEmail := normalizeEmail(*params.Email)
		var clash int64
		if err := s.db.Model(&models.CompanyUser{}).
			Where("company_id = ? AND email = ? AND id <> ?", session.CompanyID, newEmail, targetID).
			Count(&clash).Error; err != nil {
			return nil, apperrors.ServerError("更新失败")
		}
		if clash > 0 {
			return nil, apperrors.Conflict("邮箱在本租户内已存在")
		}
		updates["email"] = newEmail

		// 所有者登录邮箱即租户邮箱：同步回租户记录，
		// 保证 company_email 登录路径不漂移（与 UpdateProfile 同一契约）
		if target.IsOwner {
			var companyClash int64
			if err := s.db.Model(&models.Company{}).
				Where("email = ? AND id <> ?", newEmail, session.CompanyID).
				Count(&companyClash).Error; err != nil {
				return nil, apperrors.ServerError("更新失败")
			}
			if companyClash > 0 {
				return nil, apperrors.Conflict("邮箱已被占用")
			}
			companyUpdates["email"] = newEmail
		}
	}
	if params.Role != nil {
		if appErr := RequireAdmin(session); appErr != nil {
			return nil, appErr
		}
		// 所有者角色不可变，静默保持
		if !target.IsOwner {
			if *params.Role == models.RoleAdmin {
				updates["role"] = models.RoleAdmin
			} else {
				updates["role"] = models.RoleStaff
			}
		}
	}
	if params.AllowedModules != nil {
		var company models.Company
		if err := s.db.First(&company, session.CompanyID).Error; err != nil {
			return nil, apperrors.ServerError("更新失败")
		}
		updates["allowed_modules"] = models.IntersectModules(*params.AllowedModules, company.EnabledModules)
	}
	if params.Password != nil {
		if len(*params.Password) < 4 {
			return nil, apperrors.InvalidParam("密码长度不足")
		}
		hashed := models.CompanyUser{}
		if err := hashed.SetPassword(*params.Password); err != nil {
			return nil, apperrors.ServerError("更新失败")
		}
		updates["password_hash"] = hashed.PasswordHash
	}
	if params.IsActive != nil {
		// 守护只针对停用；置true是无害的空操作
		if !*params.IsActive {
			if target.ID == session.UserID {
				return nil, apperrors.Forbidden("不能停用自己的账号")
			}
			if target.IsOwner {
				return nil, apperrors.Forbidden("所有者账号不可停用")
			}
		}
		updates["is_active"] = *params.IsActive
	}

	if len(updates) > 0 {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.CompanyUser{}).
				Where("id = ? AND company_id = ?", targetID, session.CompanyID).
				Updates(updates).Error; err != nil {
				return err
			}
			if len(companyUpdates) > 0 {
				return tx.Model(&models.Company{}).
					Where("id = ?", session.CompanyID).
					Updates(companyUpdates).Error
			}
			return nil
		})
		if err != nil {
			return nil, apperrors.ServerError("更新失败")
		}
	}

	return s.GetByID(session.CompanyID, targetID)
}

// StrictDelete 严格删除成员
// 有效会话之外，操作者必须重新提交自己的邮箱+密码（防会话劫持式误删）；
// 所有者行不可删（只随整租户级联删除）；不可删除自己
func (s *CompanyUserService) StrictDelete(session *AuthSession, targetID uint, confirmEmail, confirmPassword string) *apperrors.AppError {
	if confirmEmail == "" || confirmPassword == "" {
		return apperrors.InvalidParam("确认邮箱/密码必填")
	}

	var me models.CompanyUser
	if err := s.db.First(&me, session.UserID).Error; err != nil {
		return apperrors.Unauthorized("会话已失效")
	}
	// 邮箱错与密码错返回同一错误
	if normalizeEmail(confirmEmail) != me.Email || !me.CheckPassword(confirmPassword) {
		return apperrors.Unauthorized("确认凭证无效")
	}

	if appErr := RequireAdmin(session); appErr != nil {
		return appErr
	}

	target, appErr := s.GetByID(session.CompanyID, targetID)
	if appErr != nil {
		return appErr
	}
	if target.IsOwner {
		return apperrors.Forbidden("所有者账号不可删除")
	}
	if target.ID == session.UserID {
		return apperrors.Forbidden("不能删除自己的账号")
	}

	err := s.db.Where("id = ? AND company_id = ?", targetID, session.CompanyID).
		Delete(&models.CompanyUser{}).Error
	if err != nil {
		return apperrors.ServerError("删除失败")
	}
	return nil
}

// SuperListByCompany 超级管理员视角列出指定租户的全部成员
// 与租户自助接口不同，这里按路径里的租户ID查，租户不存在返回NotFound
func (s *CompanyUserService) SuperListByCompany(companyID uint) ([]*models.CompanyUser, *apperrors.AppError) {
	var count int64
	if err := s.db.Model(&models.Company{}).Where("id = ?", companyID).Count(&count).Error; err != nil {
		return nil, apperrors.ServerError("查询失败")
	}
	if count == 0 {
		return nil, apperrors.NotFound("租户不存在")
	}

	users, err := s.ListByCompany(companyID)
	if err != nil {
		return nil, apperrors.ServerError("查询失败")
	}
	return users, nil
}

// SuperSetActive 超级管理员启停租户成员
// 所有者行不可操作：租户级的停用走租户本身的 is_active
func (s *CompanyUserService) SuperSetActive(companyID, userID uint, isActive bool) (*models.CompanyUser, *apperrors.AppError) {
	target, appErr := s.GetByID(companyID, userID)
	if appErr != nil {
		return nil, appErr
	}
	if target.IsOwner {
		return nil, apperrors.Forbidden("所有者账号不可启停")
	}

	if err := s.db.Model(&models.CompanyUser{}).
		Where("id = ? AND company_id = ?", userID, companyID).
		Update("is_active", isActive).Error; err != nil {
		return nil, apperrors.ServerError("更新失败")
	}
	return s.GetByID(companyID, userID)
}

// GetProfile 当前成员资料
func (s *CompanyUserService) GetProfile(session *AuthSession) (*models.CompanyUser, *apperrors.AppError) {
	return s.GetByID(session.CompanyID, session.UserID)
}

// UpdateProfile 所有者自助更新登录邮箱/密码
// 租户级登录凭证只有所有者可改；邮箱变更同步回租户记录，
// 保证 company_email 登录路径与成员登录身份一致
func (s *CompanyUserService) UpdateProfile(session *AuthSession, params UpdateProfileParams) (*models.CompanyUser, *apperrors.AppError) {
	me, appErr := s.GetByID(session.CompanyID, session.UserID)
	if appErr != nil {
		return nil, appErr
	}
	if !me.IsOwner {
		return nil, apperrors.Forbidden("仅所有者可修改登录凭证")
	}

	updates := map[string]interface{}{}
	companyUpdates := map[string]interface{}{}

	if params.Email != nil {
		newEmail := normalizeEmail(*params.Email)
		var clash int64
		if err := s.db.Model(&models.Company{}).
			Where("email = ? AND id <> ?", newEmail, session.CompanyID).
			Count(&clash).Error; err != nil {
			return nil, apperrors.ServerError("更新失败")
		}
		if clash > 0 {
			return nil, apperrors.Conflict("邮箱已被占用")
		}
		updates["email"] = newEmail
		companyUpdates["email"] = newEmail
	}
	if params.Password != nil {
		if len(*params.Password) < 4 {
			return nil, apperrors.InvalidParam("密码长度不足")
		}
		hashed := models.CompanyUser{}
		if err := hashed.SetPassword(*params.Password); err != nil {
			return nil, apperrors.ServerError("更新失败")
		}
		updates["password_hash"] = hashed.PasswordHash
	}

	if len(updates) > 0 {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.CompanyUser{}).
				Where("id = ? AND company_id = ?", me.ID, session.CompanyID).
				Updates(updates).Error; err != nil {
				return err
			}
			if len(companyUpdates) > 0 {
				return tx.Model(&models.Company{}).
					Where("id = ?", session.CompanyID).
					Updates(companyUpdates).Error
			}
			return nil
		})
		if err != nil {
			return nil, apperrors.ServerError("更新失败")
		}
	}

	return s.GetByID(session.CompanyID, session.UserID)
}
