package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"chatassistant/cmd/conversation-service/internal/conf"
	"chatassistant/cmd/conversation-service/internal/server"
	"chatassistant/pkg/logger"
	"chatassistant/pkg/observability"

	"github.com/go-kratos/kratos/v2/log"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
)

var configFile = flag.String("config", "", "配置文件路径")

// App 应用组件
type App struct {
	Server *server.HTTPServer
}

func main() {
	flag.Parse()

	// 加载配置
	config, err := conf.Load(*configFile)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zl, err := logger.New(logger.Config{
		Level:       config.Observability.LogLevel,
		Format:      config.Observability.LogFormat,
		ServiceName: config.Observability.ServiceName,
		Version:     config.Observability.ServiceVersion,
		Environment: config.Observability.Environment,
	})
	if err != nil {
		stdlog.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	kl := logger.NewZapLogger(zl)
	helper := log.NewHelper(log.With(kl, "module", "main"))

	helper.Infof("Starting Conversation Service: version=%s environment=%s",
		config.Observability.ServiceVersion, config.Observability.Environment)

	// 初始化追踪
	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		ServiceName:    config.Observability.ServiceName,
		ServiceVersion: config.Observability.ServiceVersion,
		Environment:    config.Observability.Environment,
		Endpoint:       config.Observability.OTELEndpoint,
		SamplingRate:   config.Observability.SamplingRate,
		Enabled:        config.Observability.EnableTrace,
	})
	if err != nil {
		zl.Fatal("Failed to init tracing", zap.Error(err))
	}

	// 初始化应用（通过 Wire 生成）
	app, cleanup, err := initApp(config, kl)
	if err != nil {
		zl.Fatal("Failed to initialize app", zap.Error(err))
	}

	go func() {
		if err := app.Server.Start(); err != nil {
			zl.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	helper.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.Server.Shutdown(ctx); err != nil {
		helper.Errorf("Server forced to shutdown: %v", err)
	}

	// 关闭数据库、Redis、Kafka
	cleanup()

	if err := shutdownTracing(ctx); err != nil {
		helper.Errorf("Tracing shutdown failed: %v", err)
	}

	helper.Info("Server exited")
}
