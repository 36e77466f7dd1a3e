package services

import (
	"errors"
	"strings"
	"time"

	"erphub/internal/models"
	apperrors "erphub/pkg/errors"
	"erphub/pkg/jwt"

	"gorm.io/gorm"
)

// AuthSession 权威会话对象
// 每次特权调用由 ResolveSession 基于数据库实时状态重建，
// 下游处理器只信任这个对象，不信任Cookie里解出的声明
type AuthSession struct {
	UserID         uint              `json:"user_id"`
	CompanyID      uint              `json:"company_id"`
	Email          string            `json:"email"`
	Name           string            `json:"name"`
	Role           string            `json:"role"`
	IsOwner        bool              `json:"is_owner"`
	AllowedModules models.ModuleList `json:"allowed_modules"` // 实时交集
}

// SuperSession 超级管理员权威会话
type SuperSession struct {
	AdminID uint   `json:"admin_id"`
	Email   string `json:"email"`
}

type AuthService struct {
	db *gorm.DB
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveSession 把令牌声明重新解析为权威会话
// 声明只提供 userId/companyId 两个查找键，其余字段全部以数据库为准：
//  1. 租户不存在或停用 -> UNAUTHORIZED
//  2. 套餐窗口存在且已过期 -> PLAN_EXPIRED（前端据此展示续费而不是跳登录）
//  3. 成员不存在、停用、或不属于声明中的租户 -> UNAUTHORIZED
//  4. 有效模块集 = 成员分配 ∩ 租户订阅，解析时重算，不读缓存
//
// 存储不可达一律视为失败（fail closed），绝不放行
func (s *AuthService) ResolveSession(claims *jwt.CompanyClaims) (*AuthSession, *apperrors.AppError) {
	var company models.Company
	if err := s.db.First(&company, claims.CompanyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Unauthorized("会话已失效")
		}
		return nil, apperrors.ServerError("会话校验失败")
	}
	if !company.IsActive {
		return nil, apperrors.Unauthorized("会话已失效")
	}
	if company.PlanExpired(time.Now()) {
		return nil, apperrors.PlanExpired()
	}

	var user models.CompanyUser
	if err := s.db.First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Unauthorized("会话已失效")
		}
		return nil, apperrors.ServerError("会话校验失败")
	}
	if !user.IsActive || user.CompanyID != company.ID {
		return nil, apperrors.Unauthorized("会话已失效")
	}

	role := user.Role
	if role == "" {
		role = models.RoleStaff
	}

	return &AuthSession{
		UserID:         user.ID,
		CompanyID:      user.CompanyID,
		Email:          user.Email,
		Name:           user.Name,
		Role:           role,
		IsOwner:        user.IsOwner,
		AllowedModules: models.IntersectModules(user.AllowedModules, company.EnabledModules),
	}, nil
}

// Login 租户成员登录
// 选定契约：邮箱在租户内唯一，company_email 可选。
// 不带 company_email 时按邮箱跨租户扫描活跃成员并逐个验密，
// 恰好命中一个才放行；零个或多个都返回统一的"无效凭证"，
// 不泄露邮箱是否存在、密码是否正确、或归属是否有歧义。
func (s *AuthService) Login(companyEmail, email, password string) (*models.CompanyUser, *models.Company, *apperrors.AppError) {
	email = normalizeEmail(email)

	var user *models.CompanyUser
	var company *models.Company

	if companyEmail != "" {
		var c models.Company
		err := s.db.Where("email = ? AND is_active = ?", normalizeEmail(companyEmail), true).First(&c).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, apperrors.Unauthorized("无效凭证")
			}
			return nil, nil, apperrors.ServerError("登录失败")
		}

		var u models.CompanyUser
		err = s.db.Where("company_id = ? AND email = ? AND is_active = ?", c.ID, email, true).First(&u).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, apperrors.Unauthorized("无效凭证")
			}
			return nil, nil, apperrors.ServerError("登录失败")
		}
		if !u.CheckPassword(password) {
			return nil, nil, apperrors.Unauthorized("无效凭证")
		}
		user, company = &u, &c
	} else {
		var candidates []models.CompanyUser
		err := s.db.
			Joins("JOIN companies ON companies.id = company_users.company_id AND companies.is_active = ?", true).
			Where("company_users.email = ? AND company_users.is_active = ?", email, true).
			Find(&candidates).Error
		if err != nil {
			return nil, nil, apperrors.ServerError("登录失败")
		}

		for i := range candidates {
			if candidates[i].CheckPassword(password) {
				if user != nil {
					// 多租户下同邮箱同密码无法判定归属，按无效凭证处理
					return nil, nil, apperrors.Unauthorized("无效凭证")
				}
				user = &candidates[i]
			}
		}
		if user == nil {
			return nil, nil, apperrors.Unauthorized("无效凭证")
		}

		var c models.Company
		if err := s.db.First(&c, user.CompanyID).Error; err != nil {
			return nil, nil, apperrors.ServerError("登录失败")
		}
		company = &c
	}

	// 租户停用在上面的查询里已经屏蔽了凭证有效性（直接401）；
	// 套餐过期只对验密通过的请求暴露
	if company.PlanExpired(time.Now()) {
		return nil, nil, apperrors.PlanExpired()
	}

	return user, company, nil
}

// ResolveSuperSession 超级管理员会话解析，同样以数据库为准
func (s *AuthService) ResolveSuperSession(claims *jwt.SuperClaims) (*SuperSession, *apperrors.AppError) {
	var admin models.SuperAdmin
	if err := s.db.First(&admin, claims.AdminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Unauthorized("会话已失效")
		}
		return nil, apperrors.ServerError("会话校验失败")
	}
	if !admin.IsActive {
		return nil, apperrors.Unauthorized("会话已失效")
	}
	return &SuperSession{AdminID: admin.ID, Email: admin.Email}, nil
}

// SuperLogin 超级管理员登录
func (s *AuthService) SuperLogin(email, password string) (*models.SuperAdmin, *apperrors.AppError) {
	var admin models.SuperAdmin
	err := s.db.Where("email = ? AND is_active = ?", normalizeEmail(email), true).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Unauthorized("无效凭证")
		}
		return nil, apperrors.ServerError("登录失败")
	}
	if !admin.CheckPassword(password) {
		return nil, apperrors.Unauthorized("无效凭证")
	}
	return &admin, nil
}

// ========== 会话谓词 ==========

// RequireModule 模块访问校验
func RequireModule(session *AuthSession, moduleKey string) *apperrors.AppError {
	for _, key := range session.AllowedModules {
		if key == moduleKey {
			return nil
		}
	}
	return apperrors.NoModuleAccess(moduleKey)
}

// RequireAdmin 管理员校验：所有者或ADMIN角色
func RequireAdmin(session *AuthSession) *apperrors.AppError {
	if session.IsOwner || session.Role == models.RoleAdmin {
		return nil
	}
	return apperrors.Forbidden("仅管理员可操作")
}
