// Package logger 提供基于 zap 的 kratos 日志实现
package logger

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ log.Logger = (*ZapLogger)(nil)

// Config 日志配置
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json, console
	ServiceName string
	Version     string
	Environment string
}

// ZapLogger 将 kratos 键值日志转发到 zap
type ZapLogger struct {
	zl *zap.Logger
}

// New 根据配置构建 zap 日志
func New(c Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if c.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig.InitialFields = map[string]interface{}{
		"service":     c.ServiceName,
		"version":     c.Version,
		"environment": c.Environment,
	}

	return zapConfig.Build()
}

// NewZapLogger 包装已有的 zap.Logger，跳过 kratos Helper 的调用栈
func NewZapLogger(zl *zap.Logger) *ZapLogger {
	return &ZapLogger{zl: zl.WithOptions(zap.AddCallerSkip(3))}
}

// Log 实现 log.Logger
func (l *ZapLogger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "KEYVALS UNPAIRED")
	}

	var msg string
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}

	switch level {
	case log.LevelDebug:
		l.zl.Debug(msg, fields...)
	case log.LevelWarn:
		l.zl.Warn(msg, fields...)
	case log.LevelError, log.LevelFatal:
		l.zl.Error(msg, fields...)
	default:
		l.zl.Info(msg, fields...)
	}
	return nil
}

// Sync 刷新缓冲
func (l *ZapLogger) Sync() error {
	return l.zl.Sync()
}
