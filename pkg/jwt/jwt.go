package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "erphub"

// 会话Cookie名称
// 属性约定：HTTP-only、SameSite=Lax、生产环境Secure、路径 /、有效期与令牌一致
const (
	CompanyCookieName = "erp_token"
	SuperCookieName   = "super_admin_token"
)

// CompanyClaims 租户成员会话声明
// 注意：声明只是签发时刻的缓存快照，服务端每次特权调用都会回读数据库重算，
// AllowedModules 字段不作为鉴权依据
type CompanyClaims struct {
	UserID         uint     `json:"user_id"`
	CompanyID      uint     `json:"company_id"`
	Email          string   `json:"email"`
	Name           string   `json:"name"`
	Role           string   `json:"role"` // ADMIN | STAFF
	IsOwner        bool     `json:"is_owner"`
	AllowedModules []string `json:"allowed_modules"` // 签发时已做交集
	jwt.RegisteredClaims
}

// SuperClaims 超级管理员会话声明（独立主体空间，不含租户）
type SuperClaims struct {
	AdminID uint   `json:"admin_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// JWTManager JWT管理器
type JWTManager struct {
	secretKey     string
	tokenDuration time.Duration
}

// NewJWTManager 创建JWT管理器，密钥由配置层保证非空
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     secretKey,
		tokenDuration: tokenDuration,
	}
}

func (manager *JWTManager) registeredClaims(subject string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(now.Add(manager.tokenDuration)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    issuer,
		Subject:   subject,
	}
}

// GenerateCompanyToken 签发租户成员会话令牌
func (manager *JWTManager) GenerateCompanyToken(claims *CompanyClaims) (string, error) {
	claims.RegisteredClaims = manager.registeredClaims(claims.Email)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(manager.secretKey))
}

// GenerateSuperToken 签发超级管理员会话令牌
func (manager *JWTManager) GenerateSuperToken(claims *SuperClaims) (string, error) {
	claims.RegisteredClaims = manager.registeredClaims(claims.Email)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(manager.secretKey))
}

func (manager *JWTManager) keyFunc(token *jwt.Token) (interface{}, error) {
	// 锁定HMAC，防止算法替换
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("意外的签名方法")
	}
	return []byte(manager.secretKey), nil
}

// VerifyCompanyToken 验证租户成员令牌
// 格式错误、签名错误、过期都返回error，永远不返回部分声明
func (manager *JWTManager) VerifyCompanyToken(tokenString string) (*CompanyClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CompanyClaims{}, manager.keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CompanyClaims)
	if !ok || !token.Valid {
		return nil, errors.New("无法解析token声明")
	}
	return claims, nil
}

// VerifySuperToken 验证超级管理员令牌
func (manager *JWTManager) VerifySuperToken(tokenString string) (*SuperClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SuperClaims{}, manager.keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SuperClaims)
	if !ok || !token.Valid {
		return nil, errors.New("无法解析token声明")
	}
	return claims, nil
}

// GetTokenDuration 获取令牌有效期
func (manager *JWTManager) GetTokenDuration() time.Duration {
	return manager.tokenDuration
}
