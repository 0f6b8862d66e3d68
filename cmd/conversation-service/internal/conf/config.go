package conf

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	Mode            string        `mapstructure:"mode"` // gin 模式：debug/release/test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ChatRateLimit   int           `mapstructure:"chat_rate_limit"` // 每用户每分钟 /api/chat 次数，0 不限
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Source          string        `mapstructure:"source"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DBName          string        `mapstructure:"dbname"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

// RedisConfig Redis 配置，addr 为空时关闭摘要缓存
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SummaryTTL   time.Duration `mapstructure:"summary_ttl"`
}

// KafkaConfig Kafka 配置，brokers 为空时不发布事件
type KafkaConfig struct {
	Brokers     []string      `mapstructure:"brokers"`
	Topic       string        `mapstructure:"topic"`
	Compression string        `mapstructure:"compression"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LLMConfig 模型配置
type LLMConfig struct {
	APIBase                string               `mapstructure:"api_base"`
	APIKey                 string               `mapstructure:"api_key"`
	Model                  string               `mapstructure:"model"`
	Timeout                time.Duration        `mapstructure:"timeout"`
	Temperature            float32              `mapstructure:"temperature"`
	MaxTokens              int                  `mapstructure:"max_tokens"`
	SummaryThresholdTokens int                  `mapstructure:"summary_threshold_tokens"`
	SystemPrompt           string               `mapstructure:"system_prompt"`
	ToolsFile              string               `mapstructure:"tools_file"`
	CircuitBreaker         CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	MaxRequests uint32        `mapstructure:"max_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Threshold   float64       `mapstructure:"threshold"`
	MinRequests uint32        `mapstructure:"min_requests"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret   string   `mapstructure:"jwt_secret"`
	AdminEmails []string `mapstructure:"admin_emails"`
	SkipPaths   []string `mapstructure:"skip_paths"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	OTELEndpoint   string  `mapstructure:"otel_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	Environment    string  `mapstructure:"environment"`
	EnableTrace    bool    `mapstructure:"enable_trace"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
	LogLevel       string  `mapstructure:"log_level"`
	LogFormat      string  `mapstructure:"log_format"`
}

// Load 加载配置
//
// configPath 为空时在 ./configs 等目录查找 conversation-service.yaml，找不到则只用默认值和环境变量。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("conversation-service")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	// 自动从环境变量读取，如 LLM_MODEL -> llm.model
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 180*time.Second)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 190*time.Second)
	v.SetDefault("server.chat_rate_limit", 30)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.dbname", "chat")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.summary_ttl", 24*time.Hour)

	v.SetDefault("kafka.topic", "conversation-events")
	v.SetDefault("kafka.compression", "none")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.timeout", 10*time.Second)

	v.SetDefault("llm.api_base", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-oss-120b")
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.summary_threshold_tokens", 100000)
	v.SetDefault("llm.circuit_breaker.max_requests", 1)
	v.SetDefault("llm.circuit_breaker.interval", 60*time.Second)
	v.SetDefault("llm.circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("llm.circuit_breaker.threshold", 0.6)
	v.SetDefault("llm.circuit_breaker.min_requests", 5)

	v.SetDefault("auth.skip_paths", []string{"/api/health", "/metrics"})

	v.SetDefault("observability.service_name", "conversation-service")
	v.SetDefault("observability.service_version", "1.0.0")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.sampling_rate", 1.0)
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
}

// applyEnvOverrides 敏感配置与部署变量优先取环境变量
func applyEnvOverrides(c *Config) {
	if key := os.Getenv("API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if base := os.Getenv("LLM_API_BASE"); base != "" {
		c.LLM.APIBase = base
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.Source = dsn
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		c.Database.Password = password
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	if admins := os.Getenv("ADMIN_EMAILS"); admins != "" {
		c.Auth.AdminEmails = splitList(admins)
	}
	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			c.Server.HTTPAddr = ":" + port
		}
	}
	if endpoint := os.Getenv("OTEL_ENDPOINT"); endpoint != "" {
		c.Observability.OTELEndpoint = endpoint
	}
}

// Validate 校验必填项
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key (API_KEY) is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (JWT_SECRET) is required")
	}
	if c.LLM.SummaryThresholdTokens <= 0 {
		return fmt.Errorf("llm.summary_threshold_tokens must be positive, got %d", c.LLM.SummaryThresholdTokens)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
