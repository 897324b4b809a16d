package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	DSN             string `yaml:"dsn"`             // 完整 DSN，设置后忽略下面的字段
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	URI      string `yaml:"uri"`      // 完整连接串，设置后忽略 Address/Username/Password
	Address  string `yaml:"address"`  // MongoDB 服务器地址
	Username string `yaml:"username"` // 用户名
	Password string `yaml:"password"` // 密码
	Database string `yaml:"database"` // 数据库名称
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表，为空时不发布事件
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Driver  string      `yaml:"driver"`  // 事实存储使用的数据库: "mysql" 或 "mongodb"
	Redis   RedisConfig `yaml:"redis"`   // Redis 配置（仅在 quota.store 为 redis 时使用）
	MySQL   MySQLConfig `yaml:"mysql"`   // MySQL 数据库配置
	MongoDB MongoConfig `yaml:"mongodb"` // MongoDB 数据库配置
	Kafka   KafkaConfig `yaml:"kafka"`   // Kafka 消息队列配置
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// ServerConfig 定义了 HTTP 服务的监听与跨域配置。
type ServerConfig struct {
	Port            int    `yaml:"port"`            // 监听端口
	ClientURL       string `yaml:"clientURL"`       // 允许跨域访问的前端地址
	ShutdownTimeout string `yaml:"shutdownTimeout"` // 优雅关闭的等待时间，例如 "10s"
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ProviderConfig 描述一个远程文本生成服务。
type ProviderConfig struct {
	Provider string `yaml:"provider"` // 主服务: "huggingface" 或 "ollama"；备用服务: "gemini" 或 "openai"
	APIKey   string `yaml:"apiKey"`   // API 密钥，为空时该服务视为未配置（ollama 除外）
	Model    string `yaml:"model"`    // 模型名称
	BaseURL  string `yaml:"baseURL"`  // 自定义服务地址
}

// QuotaConfig 定义了每个远程服务的每日调用上限。
type QuotaConfig struct {
	Store     string `yaml:"store"`     // "memory" 或 "redis"
	Window    string `yaml:"window"`    // 配额窗口，默认 "24h"
	Primary   int    `yaml:"primary"`   // 主服务上限
	Secondary int    `yaml:"secondary"` // 备用服务上限
}

// EventsConfig 定义了事实事件的发布配置。
type EventsConfig struct {
	Topic string `yaml:"topic"` // Kafka 主题
	Relay bool   `yaml:"relay"` // 是否把其他实例生成的事实转发给本实例的 WebSocket 客户端
}

// GenerationConfig 包含事实生成相关的全部配置。
type GenerationConfig struct {
	Primary        ProviderConfig `yaml:"primary"`
	Secondary      ProviderConfig `yaml:"secondary"`
	Timeout        string         `yaml:"timeout"`        // 远程调用超时，例如 "30s"
	CacheTTL       string         `yaml:"cacheTTL"`       // 缓存有效期，例如 "5m"
	CacheCapacity  int            `yaml:"cacheCapacity"`  // 缓存最大条目数
	CuratedPath    string         `yaml:"curatedPath"`    // 自定义精选事实 JSON 文件，为空时使用内置数据
	BatchWidth     int            `yaml:"batchWidth"`     // 批量生成的并发宽度
	BatchDelay     string         `yaml:"batchDelay"`     // 批次之间的间隔
	MaxBatch       int            `yaml:"maxBatch"`       // 单次批量生成的最大数量
	PersistTimeout string         `yaml:"persistTimeout"` // 持久化的超时时间
	Quota          QuotaConfig    `yaml:"quota"`
	Events         EventsConfig   `yaml:"events"`
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled  bool              `yaml:"enabled"`
	API      FixedWindowConfig `yaml:"api"`      // 作用于 /api 下的所有请求
	Generate FixedWindowConfig `yaml:"generate"` // 作用于生成接口
}

// FixedWindowConfig 定义了固定窗口计数器算法的配置。
type FixedWindowConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // 例如: "1m", "30s"
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`        // 应用程序信息
	Server     ServerConfig     `yaml:"server"`     // HTTP 服务配置
	Logger     LoggerConfig     `yaml:"logger"`     // 日志记录器配置
	Databases  DatabaseConfigs  `yaml:"databases"`  // 数据库配置
	Generation GenerationConfig `yaml:"generation"` // 事实生成配置
	Middleware MiddlewareConfig `yaml:"middleware"` // 中间件配置
}

// Default 返回一份可直接运行的默认配置。
func Default() *AppConfig {
	return &AppConfig{
		App: AppInfo{Name: "factverse", Version: "1.0.0", Environment: "development"},
		Server: ServerConfig{
			Port:            5000,
			ClientURL:       "http://localhost:3000",
			ShutdownTimeout: "10s",
		},
		Logger: LoggerConfig{Level: "info"},
		Databases: DatabaseConfigs{
			Driver: "mysql",
			Redis:  RedisConfig{Address: "localhost:6379"},
			MySQL: MySQLConfig{
				Address:         "localhost:3306",
				Username:        "root",
				Database:        "factverse",
				MaxOpenConns:    20,
				MaxIdleConns:    5,
				ConnMaxLifetime: 3600,
			},
			MongoDB: MongoConfig{Address: "localhost:27017", Database: "factverse"},
		},
		Generation: GenerationConfig{
			Primary:        ProviderConfig{Provider: "huggingface", Model: "gpt2"},
			Secondary:      ProviderConfig{Provider: "gemini", Model: "gemini-1.5-flash"},
			Timeout:        "30s",
			CacheTTL:       "5m",
			CacheCapacity:  1024,
			BatchWidth:     5,
			BatchDelay:     "1s",
			MaxBatch:       50,
			PersistTimeout: "5s",
			Quota: QuotaConfig{
				Store:     "memory",
				Window:    "24h",
				Primary:   1000,
				Secondary: 50,
			},
			Events: EventsConfig{Topic: "fact_events", Relay: true},
		},
		Middleware: MiddlewareConfig{
			RateLimiter: RateLimiterConfig{
				Enabled:  true,
				API:      FixedWindowConfig{Limit: 1000, Window: "15m"},
				Generate: FixedWindowConfig{Limit: 50, Window: "1m"},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				SuccessThreshold: 1,
				Timeout:          "60s",
			},
		},
	}
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 文件中未出现的字段保留 Default() 的值；文件不存在时直接使用默认配置。
// 同目录或工作目录下的 .env 会先被加载，随后环境变量覆盖密钥、端口等字段。
func LoadConfig(path string) (*AppConfig, error) {
	// .env 不存在不是错误。
	_ = godotenv.Load()

	cfg := Default()
	yamlFile, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 使用环境变量覆盖配置。lookup 与 os.LookupEnv 签名一致，便于测试。
func (c *AppConfig) applyEnv(lookup func(string) (string, bool)) error {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT 不是合法端口: %w", err)
		}
		c.Server.Port = port
	}
	set("CLIENT_URL", &c.Server.ClientURL)
	set("LOG_LEVEL", &c.Logger.Level)
	set("NODE_ENV", &c.App.Environment)

	for _, slot := range []*ProviderConfig{&c.Generation.Primary, &c.Generation.Secondary} {
		switch slot.Provider {
		case "huggingface":
			set("HUGGING_FACE_API_KEY", &slot.APIKey)
		case "ollama":
			set("OLLAMA_HOST", &slot.BaseURL)
		case "gemini":
			set("GEMINI_API_KEY", &slot.APIKey)
		case "openai":
			set("OPENAI_API_KEY", &slot.APIKey)
		}
	}

	set("DATABASE_DRIVER", &c.Databases.Driver)
	set("MYSQL_DSN", &c.Databases.MySQL.DSN)
	set("MONGODB_URI", &c.Databases.MongoDB.URI)
	set("REDIS_ADDR", &c.Databases.Redis.Address)
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Databases.Kafka.Brokers = strings.Split(v, ",")
	}
	return nil
}

// Validate 检查配置中的枚举值与时间字符串。
func (c *AppConfig) Validate() error {
	durations := map[string]string{
		"server.shutdownTimeout":          c.Server.ShutdownTimeout,
		"generation.timeout":              c.Generation.Timeout,
		"generation.cacheTTL":             c.Generation.CacheTTL,
		"generation.batchDelay":           c.Generation.BatchDelay,
		"generation.persistTimeout":       c.Generation.PersistTimeout,
		"generation.quota.window":         c.Generation.Quota.Window,
		"middleware.rateLimiter.api":      c.Middleware.RateLimiter.API.Window,
		"middleware.rateLimiter.generate": c.Middleware.RateLimiter.Generate.Window,
		"middleware.circuitBreaker":       c.Middleware.CircuitBreaker.Timeout,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("配置项 %s 的时间格式无效 %q: %w", name, value, err)
		}
	}

	switch c.Databases.Driver {
	case "mysql", "mongodb":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Databases.Driver)
	}
	switch c.Generation.Quota.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("不支持的配额存储: %q", c.Generation.Quota.Store)
	}
	switch c.Generation.Primary.Provider {
	case "", "huggingface", "ollama":
	default:
		return fmt.Errorf("不支持的主服务: %q", c.Generation.Primary.Provider)
	}
	switch c.Generation.Secondary.Provider {
	case "", "gemini", "openai":
	default:
		return fmt.Errorf("不支持的备用服务: %q", c.Generation.Secondary.Provider)
	}
	if c.Generation.MaxBatch <= 0 || c.Generation.BatchWidth <= 0 {
		return fmt.Errorf("generation.maxBatch 与 generation.batchWidth 必须为正数")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("无效端口: %d", c.Server.Port)
	}
	return nil
}

// MustDuration 解析已经通过 Validate 的时间字符串，解析失败时返回 fallback。
func MustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
