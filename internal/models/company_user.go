package models

import "golang.org/x/crypto/bcrypt"

// 成员角色常量
const (
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
)

// CompanyUser 租户成员模型
// 邮箱在租户内唯一（不同租户可以重复）；IsOwner 每个租户至多一个，
// 在租户开通时一次性写入，之后任何编辑路径都不可变更
type CompanyUser struct {
	BaseModel
	CompanyID      uint       `json:"company_id" gorm:"not null;uniqueIndex:idx_company_user_email;index"`
	Email          string     `json:"email" gorm:"not null;size:100;uniqueIndex:idx_company_user_email"`
	PasswordHash   string     `json:"-" gorm:"not null;size:255"`
	Name           string     `json:"name" gorm:"size:100"`
	Phone          *string    `json:"phone" gorm:"size:20"`
	Role           string     `json:"role" gorm:"default:'STAFF';size:20"`
	IsOwner        bool       `json:"is_owner" gorm:"default:false"`
	IsActive       bool       `json:"is_active" gorm:"default:true"`
	AllowedModules ModuleList `json:"allowed_modules" gorm:"type:json"`
}

// TableName 表名
func (u *CompanyUser) TableName() string {
	return "company_users"
}

// SetPassword 设置密码 - 数据操作方法
func (u *CompanyUser) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码 - 数据操作方法
// 不匹配不是错误，只是false；调用方统一转换为"无效凭证"，不区分账号与密码
func (u *CompanyUser) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// IsAdmin 所有者隐含管理员权限
func (u *CompanyUser) IsAdmin() bool {
	return u.IsOwner || u.Role == RoleAdmin
}
