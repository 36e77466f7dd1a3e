package router

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"erphub/internal/models"
	"erphub/internal/services"
	"erphub/pkg/config"
	"erphub/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Mode: "test"},
		JWT:    config.JWTConfig{SecretKey: "test-secret", TokenDuration: "1h"},
		Redis:  config.RedisConfig{Prefix: "erphub-test"},
		CORS: config.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12,
		},
		SuperAdmin: config.SuperAdminConfig{Email: "root@erphub.test", Password: "root-pass"},
	}
}

type testEnv struct {
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Company{}, &models.CompanyUser{}, &models.SuperAdmin{}))

	cfg := testConfig()
	jwtManager := jwt.NewJWTManager(cfg.JWT.SecretKey, time.Hour)

	// Redis缺席时限流降级放行
	return &testEnv{
		engine: SetupRouter(db, nil, cfg, jwtManager),
		db:     db,
		cfg:    cfg,
	}
}

func (e *testEnv) seedTenant(t *testing.T, email string, modules []string) *models.Company {
	t.Helper()
	company, appErr := services.NewCompanyService(e.db).Provision(services.ProvisionCompanyParams{
		BusinessName:   "Acme",
		Email:          email,
		Password:       "owner-pass",
		PlanDays:       30,
		EnabledModules: modules,
		MaxUsers:       10,
	})
	require.Nil(t, appErr)
	return company
}

func (e *testEnv) seedSuper(t *testing.T) *models.SuperAdmin {
	t.Helper()
	admin := &models.SuperAdmin{Email: e.cfg.SuperAdmin.Email, IsActive: true}
	require.NoError(t, admin.SetPassword(e.cfg.SuperAdmin.Password))
	require.NoError(t, e.db.Create(admin).Error)
	return admin
}

func (e *testEnv) do(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("响应中没有 %s Cookie", name)
	return nil
}

func (e *testEnv) login(t *testing.T, companyEmail, email, password string) *http.Cookie {
	t.Helper()
	w := e.do("POST", "/api/auth/login", gin.H{
		"company_email": companyEmail,
		"email":         email,
		"password":      password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return sessionCookie(t, w, jwt.CompanyCookieName)
}

func (e *testEnv) superLogin(t *testing.T) *http.Cookie {
	t.Helper()
	w := e.do("POST", "/api/super-admin/login", gin.H{
		"email":    e.cfg.SuperAdmin.Email,
		"password": e.cfg.SuperAdmin.Password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return sessionCookie(t, w, jwt.SuperCookieName)
}

func basicAuth(email, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = env.do("GET", "/api/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginSetsCookieAndMeReflectsSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "acme@test.com", []string{models.ModuleDashboard, models.ModuleCRMLeads})

	// 无会话时 /me 也是200，session为null
	w := env.do("GET", "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"session":null`)

	cookie := env.login(t, "", "acme@test.com", "owner-pass")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)

	w = env.do("GET", "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Session *services.AuthSession `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Session)
	assert.True(t, body.Session.IsOwner)
	assert.ElementsMatch(t, []string{models.ModuleDashboard, models.ModuleCRMLeads}, body.Session.AllowedModules)
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "acme@test.com", []string{models.ModuleDashboard})

	w := env.do("POST", "/api/auth/login", gin.H{"email": "acme@test.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")

	w = env.do("POST", "/api/auth/login", gin.H{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "acme@test.com", []string{models.ModuleDashboard})
	cookie := env.login(t, "", "acme@test.com", "owner-pass")

	w := env.do("POST", "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	cleared := sessionCookie(t, w, jwt.CompanyCookieName)
	assert.Empty(t, cleared.Value)
	assert.True(t, cleared.MaxAge < 0)
}

func TestPageGuardRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "acme@test.com", []string{models.ModuleDashboard, models.ModuleCRMLeads})

	t.Run("无会话跳登录", func(t *testing.T) {
		w := env.do("GET", "/dashboard", nil)
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/auth/login", w.Header().Get("Location"))
	})

	t.Run("登录页开放", func(t *testing.T) {
		w := env.do("GET", "/auth/login", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	cookie := env.login(t, "", "acme@test.com", "owner-pass")

	t.Run("工作台只要有会话", func(t *testing.T) {
		w := env.do("GET", "/dashboard", nil, cookie)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("有模块权限的页面放行", func(t *testing.T) {
		w := env.do("GET", "/crm/leads", nil, cookie)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("无模块权限跳回工作台", func(t *testing.T) {
		w := env.do("GET", "/reports", nil, cookie)
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/dashboard?error=no_access", w.Header().Get("Location"))
	})

	t.Run("伪造Cookie跳登录", func(t *testing.T) {
		w := env.do("GET", "/dashboard", nil, &http.Cookie{Name: jwt.CompanyCookieName, Value: "garbage"})
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/auth/login", w.Header().Get("Location"))
	})
}

func TestSuperBasicGate(t *testing.T) {
	env := newTestEnv(t)

	t.Run("无凭证返回质询", func(t *testing.T) {
		w := env.do("GET", "/super-admin", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("凭证错误再质询", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/super-admin/companies", nil)
		req.Header.Set("Authorization", basicAuth("root@erphub.test", "wrong"))
		w := httptest.NewRecorder()
		env.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("凭证正确放行", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/super-admin", nil)
		req.Header.Set("Authorization", basicAuth("root@erphub.test", "root-pass"))
		w := httptest.NewRecorder()
		env.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestSuperEnsureSeedsAdmin(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/super-admin/ensure", nil)
	req.Header.Set("Authorization", basicAuth(env.cfg.SuperAdmin.Email, env.cfg.SuperAdmin.Password))
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"created":true`)

	// 再次执行幂等
	req = httptest.NewRequest("POST", "/api/super-admin/ensure", nil)
	req.Header.Set("Authorization", basicAuth(env.cfg.SuperAdmin.Email, env.cfg.SuperAdmin.Password))
	w = httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"already":true`)

	// 种子之后可以正常登录
	env.superLogin(t)
}

func TestSuperAdminCompanyAPI(t *testing.T) {
	env := newTestEnv(t)
	env.seedSuper(t)
	superCookie := env.superLogin(t)

	t.Run("无会话访问API被拒", func(t *testing.T) {
		w := env.do("GET", "/api/super-admin/companies", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	var companyID uint
	t.Run("开通租户", func(t *testing.T) {
		w := env.do("POST", "/api/super-admin/companies", gin.H{
			"business_name":   "Acme Trading",
			"email":           "acme@test.com",
			"password":        "owner-pass",
			"plan_days":       30,
			"enabled_modules": []string{models.ModuleDashboard, models.ModuleCRMLeads},
			"max_users":       3,
		}, superCookie)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var body struct {
			Company models.Company `json:"company"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		companyID = body.Company.ID
		require.NotZero(t, companyID)
	})

	t.Run("重复邮箱409", func(t *testing.T) {
		w := env.do("POST", "/api/super-admin/companies", gin.H{
			"business_name": "Clone",
			"email":         "acme@test.com",
			"password":      "owner-pass",
			"plan_days":     30,
		}, superCookie)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("模块目录", func(t *testing.T) {
		w := env.do("GET", "/api/super-admin/modules", nil, superCookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), models.ModuleERPInventory)
		assert.Contains(t, w.Body.String(), `"group":"CRM"`)
	})

	t.Run("分页列表", func(t *testing.T) {
		w := env.do("GET", "/api/super-admin/companies?page=1&page_size=10", nil, superCookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"page_info"`)
		assert.Contains(t, w.Body.String(), "acme@test.com")
	})

	t.Run("部分更新", func(t *testing.T) {
		w := env.do("PATCH", fmt.Sprintf("/api/super-admin/companies/%d", companyID), gin.H{
			"business_name": "Renamed",
		}, superCookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "Renamed")
		assert.Contains(t, w.Body.String(), "acme@test.com")
	})

	t.Run("严格删除需要操作者自己的凭证", func(t *testing.T) {
		w := env.do("DELETE", fmt.Sprintf("/api/super-admin/companies/%d", companyID), gin.H{
			"email":    env.cfg.SuperAdmin.Email,
			"password": "wrong",
		}, superCookie)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do("DELETE", fmt.Sprintf("/api/super-admin/companies/%d", companyID), gin.H{
			"email":    env.cfg.SuperAdmin.Email,
			"password": env.cfg.SuperAdmin.Password,
		}, superCookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var count int64
		require.NoError(t, env.db.Model(&models.Company{}).Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestSuperAdminCompanyMembersAPI(t *testing.T) {
	env := newTestEnv(t)
	env.seedSuper(t)
	superCookie := env.superLogin(t)
	company := env.seedTenant(t, "acme@test.com", []string{models.ModuleDashboard})
	ownerCookie := env.login(t, "", "acme@test.com", "owner-pass")

	w := env.do("POST", "/api/company/users", gin.H{
		"email":    "staff@test.com",
		"password": "pass1234",
		"name":     "Staff",
	}, ownerCookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var staff models.CompanyUser
	require.NoError(t, env.db.Where("company_id = ? AND email = ?", company.ID, "staff@test.com").
		First(&staff).Error)
	var owner models.CompanyUser
	require.NoError(t, env.db.Where("company_id = ? AND is_owner = ?", company.ID, true).
		First(&owner).Error)

	t.Run("下钻成员列表", func(t *testing.T) {
		w := env.do("GET", fmt.Sprintf("/api/super-admin/companies/%d/users", company.ID), nil, superCookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "staff@test.com")
		assert.Contains(t, w.Body.String(), "acme@test.com")
		assert.NotContains(t, w.Body.String(), "password_hash")
	})

	t.Run("租户不存在404", func(t *testing.T) {
		w := env.do("GET", "/api/super-admin/companies/9999/users", nil, superCookie)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("启停成员", func(t *testing.T) {
		w := env.do("PATCH", fmt.Sprintf("/api/super-admin/companies/%d/users/%d", company.ID, staff.ID), gin.H{
			"is_active": false,
		}, superCookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var fresh models.CompanyUser
		require.NoError(t, env.db.First(&fresh, staff.ID).Error)
		assert.False(t, fresh.IsActive)

		w = env.do("PATCH", fmt.Sprintf("/api/super-admin/companies/%d/users/%d", company.ID, staff.ID), gin.H{
			"is_active": true,
		}, superCookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("所有者行403", func(t *testing.T) {
		w := env.do("PATCH", fmt.Sprintf("/api/super-admin/companies/%d/users/%d", company.ID, owner.ID), gin.H{
			"is_active": false,
		}, superCookie)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("无超管会话401", func(t *testing.T) {
		w := env.do("GET", fmt.Sprintf("/api/super-admin/companies/%d/users", company.ID), nil, ownerCookie)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCompanyUsersAPI(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "acme@test.com", []string{models.ModuleDashboard, models.ModuleCRMLeads})
	ownerCookie := env.login(t, "", "acme@test.com", "owner-pass")

	t.Run("创建成员做模块安全赋值", func(t *testing.T) {
		w := env.do("POST", "/api/company/users", gin.H{
			"email":           "staff@test.com",
			"password":        "pass1234",
			"name":            "Staff",
			"allowed_modules": []string{models.ModuleCRMLeads, models.ModuleERPSales},
		}, ownerCookie)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), models.ModuleCRMLeads)
		assert.NotContains(t, w.Body.String(), models.ModuleERPSales)
		// 哈希不出现在任何响应里
		assert.NotContains(t, w.Body.String(), "password_hash")
	})

	t.Run("员工无权管理成员", func(t *testing.T) {
		staffCookie := env.login(t, "acme@test.com", "staff@test.com", "pass1234")
		w := env.do("GET", "/api/company/users", nil, staffCookie)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("资料接口", func(t *testing.T) {
		w := env.do("GET", "/api/company/profile", nil, ownerCookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "acme@test.com")
	})
}

// 订阅收缩后，已持有旧Cookie的成员下一次请求即被拦截
func TestModuleRevocationTakesEffectNextRequest(t *testing.T) {
	env := newTestEnv(t)
	env.seedSuper(t)
	superCookie := env.superLogin(t)
	company := env.seedTenant(t, "acme@test.com", []string{models.ModuleDashboard, models.ModuleCRMLeads})
	ownerCookie := env.login(t, "", "acme@test.com", "owner-pass")

	// 旧Cookie可以访问CRM页面
	w := env.do("GET", "/crm/leads", nil, ownerCookie)
	require.Equal(t, http.StatusOK, w.Code)

	// 超级管理员收缩订阅
	w = env.do("PATCH", fmt.Sprintf("/api/super-admin/companies/%d", company.ID), gin.H{
		"enabled_modules": []string{models.ModuleDashboard},
	}, superCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 同一个Cookie立即失去CRM访问权，工作台不受影响
	w = env.do("GET", "/crm/leads", nil, ownerCookie)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard?error=no_access", w.Header().Get("Location"))

	w = env.do("GET", "/dashboard", nil, ownerCookie)
	assert.Equal(t, http.StatusOK, w.Code)

	// /me 反映实时有效集合
	w = env.do("GET", "/api/auth/me", nil, ownerCookie)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Session *services.AuthSession `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Session)
	assert.NotContains(t, []string(body.Session.AllowedModules), models.ModuleCRMLeads)
}

// 租户停用后所有成员会话立即失效
func TestCompanyDeactivationKillsSessions(t *testing.T) {
	env := newTestEnv(t)
	env.seedSuper(t)
	superCookie := env.superLogin(t)
	company := env.seedTenant(t, "acme@test.com", []string{models.ModuleDashboard})
	ownerCookie := env.login(t, "", "acme@test.com", "owner-pass")

	w := env.do("GET", "/api/company/profile", nil, ownerCookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("PATCH", fmt.Sprintf("/api/super-admin/companies/%d", company.ID), gin.H{
		"is_active": false,
	}, superCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do("GET", "/api/company/profile", nil, ownerCookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 页面侧同样被打回登录
	w = env.do("GET", "/dashboard", nil, ownerCookie)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login", w.Header().Get("Location"))
}

// 套餐过期返回独立错误码
func TestPlanExpiredSurfacesDistinctCode(t *testing.T) {
	env := newTestEnv(t)
	company := env.seedTenant(t, "acme@test.com", []string{models.ModuleDashboard})
	ownerCookie := env.login(t, "", "acme@test.com", "owner-pass")

	expired := time.Now().Add(-time.Hour)
	require.NoError(t, env.db.Model(&models.Company{}).Where("id = ?", company.ID).
		Update("plan_expires_at", expired).Error)

	w := env.do("GET", "/api/company/profile", nil, ownerCookie)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "PLAN_EXPIRED")
}
