package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Collector CollectorConfig `mapstructure:"collector"`
	Facts     FactsConfig     `mapstructure:"facts"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SSH       SSHConfig       `mapstructure:"ssh"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// SimulateEnable 启动内置 SSH 模拟设备（联调使用）
	SimulateEnable bool   `mapstructure:"simulate_enable"`
	SimulatePath   string `mapstructure:"simulate_path"`
}

// CollectorConfig 采集器配置
type CollectorConfig struct {
	ID      string   `mapstructure:"id"`
	Version string   `mapstructure:"version"`
	Tags    []string `mapstructure:"tags"`
	// OutputFilter 用于原始输出的行过滤（移除分页提示等）
	OutputFilter OutputFilterConfig `mapstructure:"output_filter"`
}

// OutputFilterConfig 输出过滤器配置
type OutputFilterConfig struct {
	// Prefixes: 移除以这些字符串开头的行
	Prefixes []string `mapstructure:"prefixes"`
	// Contains: 移除包含这些子串的行（例如 Cisco 的 "--more--"）
	Contains []string `mapstructure:"contains"`
	// CaseInsensitive: 忽略大小写匹配（默认启用）
	CaseInsensitive bool `mapstructure:"case_insensitive"`
}

// FactsConfig 事实采集配置
type FactsConfig struct {
	// Resources 未指定时默认采集的资源
	Resources []string `mapstructure:"resources"`
	// Concurrency 批量采集时的设备并发数
	Concurrency int `mapstructure:"concurrency"`
	// Timeout 单台设备的采集超时
	Timeout time.Duration `mapstructure:"timeout"`
	// StoreRaw 是否保存原始回显
	StoreRaw bool `mapstructure:"store_raw"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig 原始回显与事实 JSON 的存储配置
type StorageConfig struct {
	// Backend 存储后端：local | minio
	Backend string      `mapstructure:"backend"`
	Prefix  string      `mapstructure:"prefix"`
	Local   LocalConfig `mapstructure:"local"`
	Minio   MinioConfig `mapstructure:"minio"`
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	BaseDir        string `mapstructure:"base_dir"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
}

// MinioConfig 对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// RedisConfig Redis 配置，Host 为空时不启用缓存
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// TTL 最新事实缓存有效期
	TTL time.Duration `mapstructure:"ttl"`
}

// SSHConfig SSH配置
type SSHConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	MaxActive         int           `mapstructure:"max_active"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

var globalConfig *Config

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认配置文件路径
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	// 设置环境变量前缀
	v.SetEnvPrefix("SSH_COLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 配置文件缺失时使用默认值继续
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 环境变量替换
	config = replaceEnvVars(config)
	normalize(&config)

	globalConfig = &config
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.simulate_path", "simulate/simulate.yaml")

	v.SetDefault("collector.id", "l2collector-01")
	v.SetDefault("collector.version", "1.0.0")
	// 默认包含匹配：Cisco --more-- 提示
	v.SetDefault("collector.output_filter.contains", []string{"--more--"})
	v.SetDefault("collector.output_filter.case_insensitive", true)

	v.SetDefault("facts.resources", []string{"l2_interfaces"})
	v.SetDefault("facts.concurrency", 8)
	v.SetDefault("facts.timeout", 60*time.Second)
	v.SetDefault("facts.store_raw", true)

	v.SetDefault("database.sqlite.path", "./data/l2collector.db")
	v.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.prefix", "facts")
	v.SetDefault("storage.local.base_dir", "./data/facts")
	v.SetDefault("storage.local.mkdir_if_missing", true)
	v.SetDefault("storage.minio.port", 9000)
	v.SetDefault("storage.minio.bucket", "l2collector")

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("ssh.timeout", 30*time.Second)
	v.SetDefault("ssh.keep_alive_interval", 30*time.Second)
	v.SetDefault("ssh.cleanup_interval", 30*time.Second)
	v.SetDefault("ssh.max_active", 64)
	v.SetDefault("ssh.idle_timeout", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "./logs/l2collector.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
}

// Get 获取全局配置
func Get() *Config {
	return globalConfig
}

// replaceEnvVars 替换配置中的 ${ENV} 占位
func replaceEnvVars(config Config) Config {
	config.Collector.ID = expandEnv(config.Collector.ID)
	config.Storage.Minio.AccessKey = expandEnv(config.Storage.Minio.AccessKey)
	config.Storage.Minio.SecretKey = expandEnv(config.Storage.Minio.SecretKey)
	config.Redis.Password = expandEnv(config.Redis.Password)
	return config
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
	}
	return s
}

// normalize 修正非法取值
func normalize(cfg *Config) {
	if cfg.Facts.Concurrency <= 0 {
		cfg.Facts.Concurrency = 1
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RedisEnabled 是否启用 Redis 缓存
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Host) != ""
}
