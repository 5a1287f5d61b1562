package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	App       AppConfig       `mapstructure:"app"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Bank      BankConfig      `mapstructure:"bank"`
	Store     StoreConfig     `mapstructure:"store"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
	// 事务遇到序列化冲突/死锁时的最大重试次数
	TxRetries int `mapstructure:"tx_retries"`
}

// DSN 返回 gorm 使用的连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode, d.TimeZone)
}

// URL 返回 golang-migrate 使用的连接串
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

type KafkaConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Brokers           []string `mapstructure:"brokers"`
	NotificationTopic string   `mapstructure:"notification_topic"`
	Workers           int      `mapstructure:"workers"`
	QueueSize         int      `mapstructure:"queue_size"`
}

// BankConfig 银行（BDV Pago Móvil）核验接口配置
type BankConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
	// MaxInFlight 同时进行的核验请求上限
	MaxInFlight int `mapstructure:"max_in_flight"`
}

// StoreConfig 商店业务参数，可通过 Provider 在运行时刷新
type StoreConfig struct {
	MinOrderUSD         decimal.Decimal `mapstructure:"min_order_usd"`
	MaxOrderUSD         decimal.Decimal `mapstructure:"max_order_usd"` // 0 表示不限制
	ReservationTTL      time.Duration   `mapstructure:"reservation_ttl"`
	ReaperInterval      time.Duration   `mapstructure:"reaper_interval"`
	ApprovalTolerance   decimal.Decimal `mapstructure:"approval_tolerance"`
	MaxPaymentAmountBs  decimal.Decimal `mapstructure:"max_payment_amount_bs"`
	PaymentMaxAgeDays   int             `mapstructure:"payment_max_age_days"`
	ReviewReminderDelay time.Duration   `mapstructure:"review_reminder_delay"`
}

type RateLimitConfig struct {
	GlobalRPS       float64       `mapstructure:"global_rps"`
	GlobalBurst     int           `mapstructure:"global_burst"`
	SensitiveLimit  int           `mapstructure:"sensitive_limit"`
	SensitiveWindow time.Duration `mapstructure:"sensitive_window"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	// JWT 配置验证
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	// 数据库配置验证
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka is enabled but no brokers are configured")
	}

	if c.Bank.BaseURL == "" {
		return errors.New("bank verification base_url is required")
	}

	return c.Store.Validate()
}

// Validate 验证商店业务参数
func (s StoreConfig) Validate() error {
	if s.MinOrderUSD.IsNegative() {
		return errors.New("store.min_order_usd must not be negative")
	}
	if s.MaxOrderUSD.IsPositive() && s.MaxOrderUSD.LessThan(s.MinOrderUSD) {
		return errors.New("store.max_order_usd must be greater than min_order_usd")
	}
	if s.ReservationTTL <= 0 {
		return errors.New("store.reservation_ttl must be positive")
	}
	if s.ApprovalTolerance.IsNegative() || s.ApprovalTolerance.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("store.approval_tolerance must be in [0, 1)")
	}
	return nil
}

// newViper 创建带默认值的 viper 实例
func newViper(configPath string) *viper.Viper {
	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// 设置默认值
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "America/Caracas")
	v.SetDefault("database.max_open", 100)
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.tx_retries", 3)
	v.SetDefault("jwt.expire", 24)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("app.env", env)
	v.SetDefault("app.debug", true)
	v.SetDefault("kafka.notification_topic", "storefront.notifications")
	v.SetDefault("kafka.workers", 4)
	v.SetDefault("kafka.queue_size", 1000)
	v.SetDefault("bank.timeout", "15s")
	v.SetDefault("bank.max_failures", 5)
	v.SetDefault("bank.reset_timeout", "1m")
	v.SetDefault("bank.max_in_flight", 10)
	v.SetDefault("store.min_order_usd", "1")
	v.SetDefault("store.max_order_usd", "0")
	v.SetDefault("store.reservation_ttl", "15m")
	v.SetDefault("store.reaper_interval", "1m")
	v.SetDefault("store.approval_tolerance", "0.005")
	v.SetDefault("store.max_payment_amount_bs", "3000000")
	v.SetDefault("store.payment_max_age_days", 30)
	v.SetDefault("store.review_reminder_delay", "72h")
	v.SetDefault("rate_limit.global_rps", 100)
	v.SetDefault("rate_limit.global_burst", 200)
	v.SetDefault("rate_limit.sensitive_limit", 5)
	v.SetDefault("rate_limit.sensitive_window", "1m")

	// 绑定环境变量，例如 DATABASE_HOST、BANK_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// decode 读取配置文件并解码，文件缺失时回退到默认值与环境变量
func decode(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decimalHook())); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}

	return &cfg, nil
}

// Load 加载并验证配置
func Load(configPath string) (*viper.Viper, *Config, error) {
	v := newViper(configPath)
	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return v, cfg, nil
}
