package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWTTestRouter(m *JWTManager) *gin.Engine {
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/api/health/ready", func(c *gin.Context) { c.String(http.StatusOK, "ready") })
	r.GET("/api/healthz-admin", func(c *gin.Context) { c.String(http.StatusOK, "admin") })
	r.GET("/metrics-export", func(c *gin.Context) { c.String(http.StatusOK, "export") })
	r.GET("/api/user/me", func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, identity)
	})
	return r
}

func TestJWTManager_Middleware(t *testing.T) {
	m := NewJWTManager(&JWTConfig{SecretKey: "secret"}, log.DefaultLogger)
	r := newJWTTestRouter(m)

	token, err := m.GenerateToken("user-1", "a@example.com", "Alice", RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"skip path", "/api/health", "", http.StatusOK},
		{"skip sub path", "/api/health/ready", "", http.StatusOK},
		{"sibling of skip path", "/api/healthz-admin", "", http.StatusUnauthorized},
		{"sibling of metrics", "/metrics-export", "", http.StatusUnauthorized},
		{"sibling with token", "/api/healthz-admin", "Bearer " + token, http.StatusOK},
		{"missing header", "/api/user/me", "", http.StatusUnauthorized},
		{"bad scheme", "/api/user/me", "Basic " + token, http.StatusUnauthorized},
		{"bad token", "/api/user/me", "Bearer garbage", http.StatusUnauthorized},
		{"valid", "/api/user/me", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestJWTManager_VerifyToken(t *testing.T) {
	m := NewJWTManager(&JWTConfig{SecretKey: "secret"}, log.DefaultLogger)

	token, err := m.GenerateToken("user-1", "a@example.com", "Alice", "")
	require.NoError(t, err)
	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Alice", claims.Name)

	other := NewJWTManager(&JWTConfig{SecretKey: "other"}, log.DefaultLogger)
	_, err = other.VerifyToken(token)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.VerifyToken(signed)
	assert.Error(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.VerifyToken(noSubject)
	assert.Error(t, err)
}

func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rl := NewRateLimiter(rdb, &RateLimiterConfig{RequestsPerMinute: 2}, log.DefaultLogger)
	require.True(t, rl.Enabled())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		SetIdentity(c, &domain.Identity{UserID: c.GetHeader("X-Test-User")})
	})
	r.Use(rl.Middleware())
	r.POST("/api/chat", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("u1").Code)
	w := send("u1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, send("u1").Code)
	assert.Equal(t, http.StatusOK, send("u2").Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, send("u1").Code)
}

func TestRateLimiter_DisabledWithoutRedis(t *testing.T) {
	rl := NewRateLimiter(nil, &RateLimiterConfig{RequestsPerMinute: 1}, log.DefaultLogger)
	assert.False(t, rl.Enabled())
}

func TestRequestIDAndCORS(t *testing.T) {
	cors := NewCORSManager(&CORSConfig{AllowedOrigins: []string{"*.example.com"}}, log.DefaultLogger)
	r := gin.New()
	r.Use(RequestID(), cors.Middleware())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://evil.test")
	req.Header.Set(RequestIDHeader, "given")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "given", w.Header().Get(RequestIDHeader))
}
