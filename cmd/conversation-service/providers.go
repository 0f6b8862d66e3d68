package main

import (
	"chatassistant/cmd/conversation-service/internal/biz"
	"chatassistant/cmd/conversation-service/internal/conf"
	"chatassistant/cmd/conversation-service/internal/data"
	"chatassistant/cmd/conversation-service/internal/infra"
	"chatassistant/cmd/conversation-service/internal/infra/kafka"
	"chatassistant/cmd/conversation-service/internal/middleware"
	"chatassistant/cmd/conversation-service/internal/server"
	"chatassistant/pkg/database"

	"github.com/google/wire"
)

// configSet 从应用配置拆出各层配置
var configSet = wire.NewSet(
	databaseConfig,
	redisConfig,
	producerConfig,
	llmConfig,
	breakerConfig,
	assemblerConfig,
	chatConfig,
	userConfig,
	jwtConfig,
	corsConfig,
	rateLimiterConfig,
	serverConfig,
)

func databaseConfig(c *conf.Config) *database.Config {
	d := c.Database
	return &database.Config{
		Driver:          d.Driver,
		Source:          d.Source,
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.DBName,
		SSLMode:         d.SSLMode,
		MaxIdleConns:    d.MaxIdleConns,
		MaxOpenConns:    d.MaxOpenConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		LogLevel:        d.LogLevel,
	}
}

func redisConfig(c *conf.Config) *data.RedisConfig {
	r := c.Redis
	return &data.RedisConfig{
		Addr:         r.Addr,
		Password:     r.Password,
		DB:           r.DB,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
		SummaryTTL:   r.SummaryTTL,
	}
}

func producerConfig(c *conf.Config) *kafka.ProducerConfig {
	k := c.Kafka
	return &kafka.ProducerConfig{
		Brokers:     k.Brokers,
		Topic:       k.Topic,
		Compression: k.Compression,
		MaxRetries:  k.MaxRetries,
		Timeout:     k.Timeout,
	}
}

func llmConfig(c *conf.Config) *infra.LLMConfig {
	l := c.LLM
	return &infra.LLMConfig{
		APIBase:     l.APIBase,
		APIKey:      l.APIKey,
		Model:       l.Model,
		Timeout:     l.Timeout,
		Temperature: l.Temperature,
		MaxTokens:   l.MaxTokens,
	}
}

func breakerConfig(c *conf.Config) *infra.CircuitBreakerConfig {
	b := c.LLM.CircuitBreaker
	return &infra.CircuitBreakerConfig{
		Name:             "llm-gateway",
		MaxRequests:      b.MaxRequests,
		Interval:         b.Interval,
		Timeout:          b.Timeout,
		FailureThreshold: b.Threshold,
		MinRequests:      b.MinRequests,
	}
}

func assemblerConfig(c *conf.Config) *biz.AssemblerConfig {
	return &biz.AssemblerConfig{SummaryThreshold: c.LLM.SummaryThresholdTokens}
}

// chatConfig 加载工具定义，tools_file 为空时使用内置定义
func chatConfig(c *conf.Config) (*biz.ChatConfig, error) {
	tools, err := infra.LoadToolDefinitions(c.LLM.ToolsFile)
	if err != nil {
		return nil, err
	}
	return &biz.ChatConfig{SystemPrompt: c.LLM.SystemPrompt, Tools: tools}, nil
}

func userConfig(c *conf.Config) *biz.UserConfig {
	return &biz.UserConfig{AdminEmails: c.Auth.AdminEmails}
}

func jwtConfig(c *conf.Config) *middleware.JWTConfig {
	return &middleware.JWTConfig{SecretKey: c.Auth.JWTSecret, SkipPaths: c.Auth.SkipPaths}
}

func corsConfig(c *conf.Config) *middleware.CORSConfig {
	return &middleware.CORSConfig{AllowedOrigins: c.Server.CORSOrigins}
}

func rateLimiterConfig(c *conf.Config) *middleware.RateLimiterConfig {
	return &middleware.RateLimiterConfig{RequestsPerMinute: c.Server.ChatRateLimit}
}

func serverConfig(c *conf.Config) *server.Config {
	s := c.Server
	return &server.Config{
		Addr:           s.HTTPAddr,
		Mode:           s.Mode,
		RequestTimeout: s.RequestTimeout,
		ReadTimeout:    s.ReadTimeout,
		WriteTimeout:   s.WriteTimeout,
	}
}
