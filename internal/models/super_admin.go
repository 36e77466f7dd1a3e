package models

import "golang.org/x/crypto/bcrypt"

// SuperAdmin 超级管理员模型
// 独立于租户成员的主体空间，不归属任何租户
type SuperAdmin struct {
	BaseModel
	Email        string `json:"email" gorm:"unique;not null;size:100;index"`
	PasswordHash string `json:"-" gorm:"not null;size:255"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`
}

// TableName 表名
func (s *SuperAdmin) TableName() string {
	return "super_admins"
}

// SetPassword 设置密码
func (s *SuperAdmin) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (s *SuperAdmin) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(s.PasswordHash), []byte(password))
	return err == nil
}
