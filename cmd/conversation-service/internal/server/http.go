package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"chatassistant/cmd/conversation-service/internal/domain"
	"chatassistant/cmd/conversation-service/internal/middleware"
	"chatassistant/cmd/conversation-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProviderSet 服务器层提供者集合
var ProviderSet = wire.NewSet(
	NewHTTPServer,
	NewHealthChecker,
	middleware.NewJWTManager,
	middleware.NewCORSManager,
	middleware.NewRateLimiter,
)

// Config HTTP 服务器配置
type Config struct {
	Addr           string
	Mode           string
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// HTTPServer HTTP 服务器
type HTTPServer struct {
	engine  *gin.Engine
	server  *http.Server
	service *service.ConversationService
	logger  log.Logger
	log     *log.Helper
}

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(
	config *Config,
	srv *service.ConversationService,
	jwtManager *middleware.JWTManager,
	cors *middleware.CORSManager,
	limiter *middleware.RateLimiter,
	health *HealthChecker,
	logger log.Logger,
) *HTTPServer {
	if config == nil {
		config = &Config{Addr: ":8080"}
	}
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()
	s := &HTTPServer{
		engine:  engine,
		service: srv,
		logger:  logger,
		log:     log.NewHelper(log.With(logger, "module", "server/http")),
		server: &http.Server{
			Addr:         config.Addr,
			Handler:      engine,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		},
	}

	// 恢复中间件必须最先
	engine.Use(
		RecoveryMiddleware(logger),
		middleware.RequestID(),
		cors.Middleware(),
		TracingMiddleware(),
		LoggingMiddleware(logger),
		middleware.MetricsMiddleware(),
		TimeoutMiddleware(config.RequestTimeout),
	)

	s.registerRoutes(jwtManager, limiter, health)
	return s
}

// registerRoutes 注册路由
func (s *HTTPServer) registerRoutes(jwtManager *middleware.JWTManager, limiter *middleware.RateLimiter, health *HealthChecker) {
	s.engine.GET("/api/health", health.HealthHandler())
	s.engine.GET("/api/health/ready", health.ReadinessHandler())
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api", jwtManager.Middleware())
	{
		api.POST("/chat", limiter.Middleware(), s.chat)
		api.GET("/user/me", s.currentUser)

		api.GET("/conversations", s.listConversations)
		api.POST("/conversations", s.createConversation)
		api.DELETE("/conversations/:id", s.deleteConversation)
		api.GET("/conversations/:id/messages", s.listMessages)

		api.PUT("/messages/:id", s.editMessage)

		api.GET("/admin/conversations", s.listAllConversations)
	}
}

// chat 发送消息
func (s *HTTPServer) chat(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	reply, err := s.service.Chat(c.Request.Context(), identity(c), &req)
	if err != nil {
		Error(c, err)
		return
	}

	// 模型调用失败时仍返回 200，错误文本放在 data.error 中
	Success(c, reply)
}

// currentUser 当前用户
func (s *HTTPServer) currentUser(c *gin.Context) {
	user, err := s.service.CurrentUser(c.Request.Context(), identity(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, user)
}

// listConversations 列出对话
func (s *HTTPServer) listConversations(c *gin.Context) {
	convs, err := s.service.ListConversations(c.Request.Context(), identity(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, convs)
}

// createConversation 创建对话
func (s *HTTPServer) createConversation(c *gin.Context) {
	conv, err := s.service.CreateConversation(c.Request.Context(), identity(c))
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, conv)
}

// deleteConversation 删除对话
func (s *HTTPServer) deleteConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.service.DeleteConversation(c.Request.Context(), identity(c), id); err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"id": id})
}

// listMessages 列出消息
func (s *HTTPServer) listMessages(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	msgs, err := s.service.ListMessages(c.Request.Context(), identity(c), id)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, msgs)
}

// editMessage 编辑消息
func (s *HTTPServer) editMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	msg, err := s.service.EditMessage(c.Request.Context(), identity(c), id, req.Content)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, msg)
}

// listAllConversations 管理端列出所有对话
func (s *HTTPServer) listAllConversations(c *gin.Context) {
	convs, err := s.service.ListAllConversations(c.Request.Context(), identity(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, convs)
}

// Engine 返回 gin 引擎（测试用）
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Start 启动服务器，阻塞直到关闭
func (s *HTTPServer) Start() error {
	s.log.Infof("HTTP server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭服务器
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

func identity(c *gin.Context) *domain.Identity {
	id, _ := middleware.IdentityFrom(c)
	return id
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
