package models

import "time"

// Company 租户模型 - 贫血模型，只包含数据结构
// Email 同时是所有者的登录身份，全局唯一
type Company struct {
	BaseModel
	BusinessName   string     `json:"business_name" gorm:"not null;size:200;index"`
	Email          string     `json:"email" gorm:"unique;not null;size:100;index"`
	Phone          string     `json:"phone" gorm:"size:20"`
	PlanDays       int        `json:"plan_days"`
	PlanStartsAt   *time.Time `json:"plan_starts_at"`
	PlanExpiresAt  *time.Time `json:"plan_expires_at"`
	EnabledModules ModuleList `json:"enabled_modules" gorm:"type:json"`
	MaxUsers       int        `json:"max_users" gorm:"default:1"`
	IsActive       bool       `json:"is_active" gorm:"default:true"`
}

// TableName 表名
func (c *Company) TableName() string {
	return "companies"
}

// PlanExpired 套餐窗口存在且已过期
func (c *Company) PlanExpired(now time.Time) bool {
	return c.PlanExpiresAt != nil && now.After(*c.PlanExpiresAt)
}
