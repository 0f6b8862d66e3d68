package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// 支持的驱动
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config 数据库配置
type Config struct {
	Driver   string
	Source   string // 完整 DSN，优先于 Host/Port 等字段
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// 连接池配置
	MaxIdleConns    int           // 默认10
	MaxOpenConns    int           // 默认100
	ConnMaxLifetime time.Duration // 默认1小时
	ConnMaxIdleTime time.Duration // 默认15分钟

	LogLevel           string        // silent|error|warn|info，默认 warn
	HealthCheckTimeout time.Duration // 默认5秒
}

// NewDB 创建数据库连接并完成健康检查
func NewDB(c *Config, logger log.Logger) (*gorm.DB, error) {
	logHelper := log.NewHelper(log.With(logger, "module", "database"))

	dialector, err := dialectorFor(c)
	if err != nil {
		return nil, err
	}

	// 不记录密码
	logHelper.Infof("connecting to database: driver=%s host=%s:%d database=%s user=%s",
		driverName(c), c.Host, c.Port, c.Database, c.User)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(parseLogLevel(c.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		logHelper.Errorf("failed to connect database: %v", err)
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	maxIdleConns := valueOr(c.MaxIdleConns, 10)
	maxOpenConns := valueOr(c.MaxOpenConns, 100)
	if driverName(c) == DriverSQLite {
		// 内存库只在单个连接内可见
		maxIdleConns, maxOpenConns = 1, 1
	}
	connMaxLifetime := durationOr(c.ConnMaxLifetime, time.Hour)
	connMaxIdleTime := durationOr(c.ConnMaxIdleTime, 15*time.Minute)

	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	logHelper.Infof("connection pool configured: maxIdle=%d maxOpen=%d maxLifetime=%v maxIdleTime=%v",
		maxIdleConns, maxOpenConns, connMaxLifetime, connMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), durationOr(c.HealthCheckTimeout, 5*time.Second))
	defer cancel()
	if err := Ping(ctx, db); err != nil {
		return nil, err
	}

	logHelper.Info("database connected and health check passed")
	return db, nil
}

// Ping 数据库健康检查
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(c *Config) (gorm.Dialector, error) {
	switch driverName(c) {
	case DriverPostgres:
		dsn := c.Source
		if dsn == "" {
			sslMode := c.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
		}
		return postgres.Open(dsn), nil
	case DriverSQLite:
		dsn := c.Source
		if dsn == "" {
			dsn = ":memory:"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.Driver)
	}
}

func driverName(c *Config) string {
	if c.Driver == "" {
		return DriverPostgres
	}
	return strings.ToLower(c.Driver)
}

func parseLogLevel(level string) gormLogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormLogger.Silent
	case "error":
		return gormLogger.Error
	case "info":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}

func valueOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
