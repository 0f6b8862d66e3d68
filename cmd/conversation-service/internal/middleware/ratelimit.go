package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// 固定窗口计数，首次请求设置过期时间
var rateLimitScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('EXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('TTL', KEYS[1])
	return {current, ttl}
`)

// RateLimiterConfig 限流器配置
type RateLimiterConfig struct {
	// RequestsPerMinute 每个用户每分钟请求数，0 表示不限流
	RequestsPerMinute int
}

// RateLimiter Redis 分布式限流器
//
// 按用户维度限制模型调用频率，Redis 故障时放行。
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	logger *log.Helper
}

// NewRateLimiter 创建限流器
func NewRateLimiter(rdb *redis.Client, config *RateLimiterConfig, logger log.Logger) *RateLimiter {
	rl := &RateLimiter{
		redis:  rdb,
		window: time.Minute,
		logger: log.NewHelper(log.With(logger, "module", "ratelimit")),
	}
	if config != nil {
		rl.limit = config.RequestsPerMinute
	}
	return rl
}

// Enabled 是否启用
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.redis != nil && rl.limit > 0
}

// Middleware 限流中间件，需位于认证之后
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Enabled() {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if identity, ok := IdentityFrom(c); ok {
			subject = identity.UserID
		}
		key := fmt.Sprintf("ratelimit:chat:%s", subject)

		count, ttl, err := rl.hit(c.Request.Context(), key)
		if err != nil {
			rl.logger.Errorf("rate limiter error: %v", err)
			c.Next()
			return
		}

		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > rl.limit {
			rl.logger.Warnf("rate limit exceeded: subject=%s", subject)
			c.Header("Retry-After", strconv.Itoa(ttl))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "Too many requests",
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) hit(ctx context.Context, key string) (count, ttl int, err error) {
	result, err := rateLimitScript.Run(ctx, rl.redis, []string{key}, int(rl.window.Seconds())).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to execute rate limit script: %w", err)
	}
	if len(result) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit result: %v", result)
	}
	return int(result[0]), int(result[1]), nil
}
