package services

import (
	"errors"

	"erphub/internal/models"
	"erphub/pkg/config"
	"erphub/pkg/logger"

	"gorm.io/gorm"
)

type SuperAdminService struct {
	db *gorm.DB
}

func NewSuperAdminService(db *gorm.DB) *SuperAdminService {
	return &SuperAdminService{db: db}
}

// EnsureSeed 幂等初始化超级管理员
// 启动时和 /api/super-admin/ensure 都会调用；已存在则什么都不做
func (s *SuperAdminService) EnsureSeed(cfg *config.SuperAdminConfig) (created bool, err error) {
	if cfg.Email == "" || cfg.Password == "" {
		return false, errors.New("缺少环境变量 SEED_SUPER_EMAIL/SEED_SUPER_PASS")
	}

	var count int64
	if err := s.db.Model(&models.SuperAdmin{}).Where("email = ?", cfg.Email).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	admin := &models.SuperAdmin{
		Email:    cfg.Email,
		IsActive: true,
	}
	if err := admin.SetPassword(cfg.Password); err != nil {
		return false, err
	}
	if err := s.db.Create(admin).Error; err != nil {
		return false, err
	}

	logger.GetLogger().Infof("超级管理员种子创建完成: %s", cfg.Email)
	return true, nil
}

// GetByID 根据ID获取超级管理员
func (s *SuperAdminService) GetByID(id uint) (*models.SuperAdmin, error) {
	var admin models.SuperAdmin
	err := s.db.First(&admin, id).Error
	return &admin, err
}
