package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
)

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// CORSManager CORS 管理器
type CORSManager struct {
	config *CORSConfig
	logger *log.Helper
}

// NewCORSManager 创建 CORS 管理器，未配置 origin 时允许全部
func NewCORSManager(config *CORSConfig, logger log.Logger) *CORSManager {
	merged := &CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:         3600,
	}
	if config != nil {
		if len(config.AllowedOrigins) > 0 {
			merged.AllowedOrigins = config.AllowedOrigins
		}
		if len(config.AllowedMethods) > 0 {
			merged.AllowedMethods = config.AllowedMethods
		}
		if len(config.AllowedHeaders) > 0 {
			merged.AllowedHeaders = config.AllowedHeaders
		}
		if len(config.ExposedHeaders) > 0 {
			merged.ExposedHeaders = config.ExposedHeaders
		}
		if config.MaxAge > 0 {
			merged.MaxAge = config.MaxAge
		}
		merged.AllowCredentials = config.AllowCredentials
	}

	return &CORSManager{
		config: merged,
		logger: log.NewHelper(log.With(logger, "module", "cors")),
	}
}

// Middleware CORS 中间件
func (cm *CORSManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" {
			if cm.isAllowedOrigin(origin) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Add("Vary", "Origin")
			} else {
				cm.logger.Warnf("blocked CORS request from origin: %s", origin)
			}
		}

		if cm.config.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		// 预检请求
		if c.Request.Method == http.MethodOptions {
			c.Writer.Header().Set("Access-Control-Allow-Methods", strings.Join(cm.config.AllowedMethods, ", "))
			c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join(cm.config.AllowedHeaders, ", "))
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cm.config.MaxAge))
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if len(cm.config.ExposedHeaders) > 0 {
			c.Writer.Header().Set("Access-Control-Expose-Headers", strings.Join(cm.config.ExposedHeaders, ", "))
		}

		c.Next()
	}
}

// isAllowedOrigin 支持 "*"、精确匹配与 "*.example.com"
func (cm *CORSManager) isAllowedOrigin(origin string) bool {
	for _, allowed := range cm.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if strings.HasPrefix(allowed, "*.") && strings.HasSuffix(origin, strings.TrimPrefix(allowed, "*")) {
			return true
		}
	}
	return false
}
