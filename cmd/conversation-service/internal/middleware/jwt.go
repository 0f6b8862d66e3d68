package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-jwt/jwt/v5"
)

const (
	identityKey = "identity"

	// RoleAdmin 管理员角色
	RoleAdmin = "admin"
)

// JWTManager JWT 管理器
type JWTManager struct {
	secretKey     string
	tokenDuration time.Duration
	skipPaths     []string
	logger        *log.Helper
}

// Claims JWT Claims，Subject 为用户 ID
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey     string
	TokenDuration time.Duration
	SkipPaths     []string
}

// NewJWTManager 创建 JWT 管理器
func NewJWTManager(config *JWTConfig, logger log.Logger) *JWTManager {
	m := &JWTManager{
		tokenDuration: 24 * time.Hour,
		skipPaths:     []string{"/api/health", "/metrics"},
		logger:        log.NewHelper(log.With(logger, "module", "jwt")),
	}
	if config != nil {
		m.secretKey = config.SecretKey
		if config.TokenDuration > 0 {
			m.tokenDuration = config.TokenDuration
		}
		if len(config.SkipPaths) > 0 {
			m.skipPaths = config.SkipPaths
		}
	}
	return m
}

// Middleware JWT 认证中间件
func (m *JWTManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || m.shouldSkip(c.Request.URL.Path) {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.logger.Warn("missing authorization header")
			abortUnauthorized(c, "Missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			m.logger.Warn("invalid authorization format")
			abortUnauthorized(c, "Invalid authorization format, expected 'Bearer <token>'")
			return
		}

		claims, err := m.VerifyToken(token)
		if err != nil {
			m.logger.Warnf("invalid token: %v", err)
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		SetIdentity(c, &domain.Identity{
			UserID:  claims.Subject,
			Email:   claims.Email,
			Name:    claims.Name,
			IsAdmin: claims.Role == RoleAdmin,
		})
		m.logger.Debugf("authenticated: user=%s role=%s", claims.Subject, claims.Role)

		c.Next()
	}
}

// VerifyToken 验证 JWT token
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// GenerateToken 生成 JWT token（用于测试或集成）
func (m *JWTManager) GenerateToken(userID, email, name, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		Name:  name,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "conversation-service",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (m *JWTManager) shouldSkip(path string) bool {
	// 按路径段匹配，/api/health 不放行 /api/healthz
	for _, skipPath := range m.skipPaths {
		prefix := strings.TrimSuffix(skipPath, "/")
		if path == skipPath || path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// SetIdentity 注入调用方身份
func SetIdentity(c *gin.Context, identity *domain.Identity) {
	c.Set(identityKey, identity)
}

// IdentityFrom 从 gin.Context 取出调用方身份
func IdentityFrom(c *gin.Context) (*domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*domain.Identity)
	return identity, ok && identity != nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    http.StatusUnauthorized,
		"message": message,
	})
}
