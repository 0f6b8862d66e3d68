package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthChecker 健康检查器
type HealthChecker struct {
	db     *gorm.DB
	redis  *redis.Client
	logger *log.Helper
}

// HealthResponse 就绪检查响应
type HealthResponse struct {
	Status       string                      `json:"status"` // healthy, unhealthy
	Timestamp    int64                       `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

// DependencyStatus 依赖状态
type DependencyStatus struct {
	Status  string `json:"status"` // up, down, disabled
	Latency int64  `json:"latency_ms,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewHealthChecker 创建健康检查器，redis 可为 nil
func NewHealthChecker(db *gorm.DB, rdb *redis.Client, logger log.Logger) *HealthChecker {
	return &HealthChecker{
		db:     db,
		redis:  rdb,
		logger: log.NewHelper(log.With(logger, "module", "health")),
	}
}

// HealthHandler 存活检查
func (hc *HealthChecker) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ReadinessHandler 就绪检查，数据库不可用时返回 503
func (hc *HealthChecker) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		response := HealthResponse{
			Status:       "healthy",
			Timestamp:    time.Now().Unix(),
			Dependencies: map[string]DependencyStatus{},
		}

		for name, check := range map[string]func(context.Context) DependencyStatus{
			"database": hc.checkDatabase,
			"redis":    hc.checkRedis,
		} {
			status := check(ctx)
			response.Dependencies[name] = status
			if status.Status == "down" {
				response.Status = "unhealthy"
				hc.logger.Warnf("dependency %s is down: %s", name, status.Error)
			}
		}

		statusCode := http.StatusOK
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, response)
	}
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) DependencyStatus {
	start := time.Now()
	sqlDB, err := hc.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	return dependencyStatus(start, err)
}

func (hc *HealthChecker) checkRedis(ctx context.Context) DependencyStatus {
	if hc.redis == nil {
		return DependencyStatus{Status: "disabled"}
	}
	start := time.Now()
	return dependencyStatus(start, hc.redis.Ping(ctx).Err())
}

func dependencyStatus(start time.Time, err error) DependencyStatus {
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return DependencyStatus{Status: "down", Error: err.Error(), Latency: latency}
	}
	return DependencyStatus{Status: "up", Latency: latency}
}
