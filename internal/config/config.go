package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Log      LogConfig      `mapstructure:"log"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type DatabaseConfig struct {
	Driver  string       `mapstructure:"driver"`
	LogMode bool         `mapstructure:"log_mode"`
	MySQL   MySQLConfig  `mapstructure:"mysql"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

const (
	MirrorRedis  = "redis"
	MirrorMemory = "memory"
	MirrorNone   = "none"
)

// MirrorConfig selects where account snapshots are mirrored for fast reads.
type MirrorConfig struct {
	Driver string `mapstructure:"driver"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BusinessConfig struct {
	DefaultAccountName   string  `mapstructure:"default_account_name"`
	DefaultAccountColor  string  `mapstructure:"default_account_color"`
	Currency             string  `mapstructure:"currency"`
	DriftTolerance       float64 `mapstructure:"drift_tolerance"`
	AutoCorrect          bool    `mapstructure:"auto_correct"`
	AutoCorrectMinDrift  float64 `mapstructure:"auto_correct_min_drift"`
	SweepEnabled         bool    `mapstructure:"sweep_enabled"`
	SweepCron            string  `mapstructure:"sweep_cron"`
	OutboxIntervalMillis int     `mapstructure:"outbox_interval_millis"`
	MaxRetryCount        int     `mapstructure:"max_retry_count"`
}

// Default 返回不依赖配置文件的默认配置，测试和 CLI 直接使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// defaults only, Unmarshal cannot fail on them
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.log_mode", false)
	v.SetDefault("database.mysql.host", "127.0.0.1")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.database", "billexpress")
	v.SetDefault("database.mysql.max_open_conns", 50)
	v.SetDefault("database.mysql.max_idle_conns", 10)
	v.SetDefault("database.sqlite.path", "data/ledger.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.ledger_events", "ledger-events")

	v.SetDefault("mirror.driver", MirrorMemory)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("business.default_account_name", "Efectivo")
	v.SetDefault("business.default_account_color", "#4CAF50")
	v.SetDefault("business.currency", "MXN")
	v.SetDefault("business.drift_tolerance", 0.01)
	v.SetDefault("business.auto_correct", true)
	v.SetDefault("business.auto_correct_min_drift", 0)
	v.SetDefault("business.sweep_enabled", true)
	v.SetDefault("business.sweep_cron", "@every 1h")
	v.SetDefault("business.outbox_interval_millis", 500)
	v.SetDefault("business.max_retry_count", 5)
}

// LoadConfig 加载配置文件
// 环境变量可覆盖文件中的值，例如 LEDGER_SERVER_PORT=9000
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Mirror.Driver {
	case MirrorRedis, MirrorMemory, MirrorNone:
	default:
		return fmt.Errorf("unsupported mirror driver %q", c.Mirror.Driver)
	}
	if c.Mirror.Driver == MirrorRedis && !c.Redis.Enabled {
		return fmt.Errorf("mirror driver %q requires redis.enabled", MirrorRedis)
	}
	if c.Business.DriftTolerance < 0 {
		return fmt.Errorf("business.drift_tolerance must not be negative")
	}
	return nil
}
