package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"SonaChat/pkg/logger"
)

// EnvConfigPath 指定配置文件路径的环境变量名。
const EnvConfigPath = "SONACHAT_CONFIG"

// Config 描述了会话引擎在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	LLM     LLMConfig     `json:"llm"`
	Market  MarketConfig  `json:"market"`
	Events  EventsConfig  `json:"events"`
	Wallet  WalletConfig  `json:"wallet"`
	Modes   ModesConfig   `json:"modes"`
	Logging LoggingConfig `json:"logging"`
	Runtime RuntimeConfig `json:"runtime"`
}

// LoggingConfig 描述结构化日志与审计日志的输出方式。
type LoggingConfig struct {
	Level       string      `json:"level"`
	Format      string      `json:"format"`
	OutputPaths []string    `json:"output_paths"`
	Audit       AuditConfig `json:"audit"`
}

// AuditConfig 控制审计日志文件及其滚动策略。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// ToLogger 转换为 pkg/logger 的配置结构。
func (c LoggingConfig) ToLogger() logger.Config {
	return logger.Config{
		Level:       c.Level,
		Format:      c.Format,
		OutputPaths: c.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    c.Audit.Enabled,
			Path:       c.Audit.Path,
			MaxSizeMB:  c.Audit.MaxSizeMB,
			MaxBackups: c.Audit.MaxBackups,
			MaxAgeDays: c.Audit.MaxAgeDays,
		},
	}
}

// ServerConfig 控制 API 服务的监听地址等参数。
// MetricsAddress 非空时在独立端口额外暴露 /metrics。
type ServerConfig struct {
	Address        string `json:"address"`
	MetricsAddress string `json:"metrics_address"`
}

// StorageConfig 描述会话历史的持久化后端。
type StorageConfig struct {
	History HistoryStoreConfig `json:"history"`
}

// HistoryStoreConfig 支持 memory、mysql、redis 三种驱动。
type HistoryStoreConfig struct {
	Driver string      `json:"driver"`
	MySQL  MySQLConfig `json:"mysql"`
	Redis  RedisConfig `json:"redis"`
}

// MySQLConfig 描述 MySQL 连接信息。
type MySQLConfig struct {
	DSN             string `json:"dsn"`
	MaxOpenConns    int    `json:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_seconds"`
}

// RedisConfig 描述 Redis 连接信息。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// LLMConfig 用于配置推理后端的调用方式。
type LLMConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述调用 OpenAI 兼容接口所需的信息。
type OpenAIConfig struct {
	APIKey         string  `json:"api_key"`
	BaseURL        string  `json:"base_url"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// MarketConfig 描述行情服务的调用方式。
type MarketConfig struct {
	BaseURL         string `json:"base_url"`
	APIKey          string `json:"api_key"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`
	CacheRedis      bool   `json:"cache_redis"`
}

// EventsConfig 描述会话变更事件的投递通道。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 连接信息。
type RabbitMQConfig struct {
	URL      string `json:"url"`
	Exchange string `json:"exchange"`
}

// WalletConfig 描述链上余额查询所需的节点信息。
type WalletConfig struct {
	RPCURL string `json:"rpc_url"`
	Symbol string `json:"symbol"`
}

// ModesConfig 指向可选的人格覆盖文件。
type ModesConfig struct {
	PersonasFile string `json:"personas_file"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// MySQLConnMaxLifetime 返回换算后的连接存活时长。
func (c MySQLConfig) MySQLConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// OpenAITimeout 返回换算后的请求超时。
func (c OpenAIConfig) OpenAITimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL 返回换算后的行情缓存时长。
func (c MarketConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Storage.History.Driver == "" {
		c.Storage.History.Driver = "memory"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "rule"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}

	if c.Events.RabbitMQ.Exchange == "" {
		c.Events.RabbitMQ.Exchange = "sonachat.events"
	}

	if c.Modes.PersonasFile != "" && !filepath.IsAbs(c.Modes.PersonasFile) {
		c.Modes.PersonasFile = filepath.Join(baseDir, c.Modes.PersonasFile)
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	// 审计日志默认落在数据目录下，相对路径也以数据目录为基准。
	if c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, "logs", "audit.log")
	} else if !filepath.IsAbs(c.Logging.Audit.Path) {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, c.Logging.Audit.Path)
	}
}
