package services

import (
	"testing"

	"erphub/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个用例独立的内存库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库随连接存在，锁定单连接
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Company{},
		&models.CompanyUser{},
		&models.SuperAdmin{},
	))
	return db
}

func seedCompany(t *testing.T, db *gorm.DB, email string, modules []string) *models.Company {
	t.Helper()

	service := NewCompanyService(db)
	company, appErr := service.Provision(ProvisionCompanyParams{
		BusinessName:   "Acme " + email,
		Email:          email,
		Password:       "owner-pass",
		PlanDays:       30,
		EnabledModules: modules,
		MaxUsers:       10,
	})
	require.Nil(t, appErr)
	return company
}

func ownerOf(t *testing.T, db *gorm.DB, company *models.Company) *models.CompanyUser {
	t.Helper()

	var owner models.CompanyUser
	require.NoError(t, db.Where("company_id = ? AND is_owner = ?", company.ID, true).First(&owner).Error)
	return &owner
}

func seedUser(t *testing.T, db *gorm.DB, company *models.Company, email, password, role string, modules []string) *models.CompanyUser {
	t.Helper()

	user := &models.CompanyUser{
		CompanyID:      company.ID,
		Email:          email,
		Name:           email,
		Role:           role,
		IsActive:       true,
		AllowedModules: models.IntersectModules(modules, company.EnabledModules),
	}
	require.NoError(t, user.SetPassword(password))
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedSuperAdmin(t *testing.T, db *gorm.DB, email, password string) *models.SuperAdmin {
	t.Helper()

	admin := &models.SuperAdmin{Email: email, IsActive: true}
	require.NoError(t, admin.SetPassword(password))
	require.NoError(t, db.Create(admin).Error)
	return admin
}

// sessionFor 构造目标成员的权威会话（等价于一次成功的会话解析）
func sessionFor(t *testing.T, db *gorm.DB, user *models.CompanyUser) *AuthSession {
	t.Helper()

	var company models.Company
	require.NoError(t, db.First(&company, user.CompanyID).Error)

	return &AuthSession{
		UserID:         user.ID,
		CompanyID:      user.CompanyID,
		Email:          user.Email,
		Name:           user.Name,
		Role:           user.Role,
		IsOwner:        user.IsOwner,
		AllowedModules: models.IntersectModules(user.AllowedModules, company.EnabledModules),
	}
}

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }
func boolptr(b bool) *bool    { return &b }

func modulesptr(m []string) *[]string { return &m }
