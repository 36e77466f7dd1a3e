package services

import (
	"fmt"
	"time"

	"erphub/internal/models"
	"erphub/pkg/logger"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// PlanMonitor 套餐到期巡检调度器
// 每天扫描一次：记录7天内将到期和已过期但仍标记活跃的租户。
// 只做可观测性输出，过期的强制执行发生在会话解析时，这里不改任何数据
type PlanMonitor struct {
	db      *gorm.DB
	cron    *cron.Cron
	running bool
}

// NewPlanMonitor 创建套餐巡检调度器
func NewPlanMonitor(db *gorm.DB) *PlanMonitor {
	return &PlanMonitor{
		db:   db,
		cron: cron.New(),
	}
}

// Start 启动调度器
func (m *PlanMonitor) Start() error {
	if m.running {
		return fmt.Errorf("调度器已经在运行")
	}

	// 每天早上8点巡检
	if _, err := m.cron.AddFunc("0 8 * * *", m.scan); err != nil {
		return fmt.Errorf("注册套餐巡检任务失败: %v", err)
	}

	m.cron.Start()
	m.running = true
	logger.GetLogger().Info("套餐到期巡检调度器启动成功")
	return nil
}

// Stop 停止调度器
func (m *PlanMonitor) Stop() {
	if !m.running {
		return
	}
	m.cron.Stop()
	m.running = false
	logger.GetLogger().Info("套餐到期巡检调度器已停止")
}

// scan 单次巡检
func (m *PlanMonitor) scan() {
	appLogger := logger.GetLogger()
	now := time.Now()
	soon := now.AddDate(0, 0, 7)

	var expiring []models.Company
	err := m.db.Where("is_active = ? AND plan_expires_at > ? AND plan_expires_at <= ?", true, now, soon).
		Find(&expiring).Error
	if err != nil {
		appLogger.Errorf("套餐到期巡检失败: %v", err)
		return
	}
	for _, company := range expiring {
		appLogger.Warnf("租户 %s (ID: %d) 套餐将于 %s 到期",
			company.BusinessName, company.ID, company.PlanExpiresAt.Format("2006-01-02"))
	}

	var expired int64
	err = m.db.Model(&models.Company{}).
		Where("is_active = ? AND plan_expires_at <= ?", true, now).
		Count(&expired).Error
	if err != nil {
		appLogger.Errorf("套餐过期统计失败: %v", err)
		return
	}
	if expired > 0 {
		appLogger.Warnf("当前有 %d 个活跃租户套餐已过期（访问已在会话层拦截）", expired)
	}
}
