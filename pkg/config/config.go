package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 服务整体配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Listen string `yaml:"listen"` // 监听地址
	DBPath string `yaml:"db_path"` // sqlite 成交历史/读模型
}

// StoreConfig 记录存储配置
type StoreConfig struct {
	Path     string `yaml:"path"`      // badger 数据目录
	InMemory bool   `yaml:"in_memory"` // 纯内存模式（测试/演示）
}

// EngineConfig 撮合引擎配置
type EngineConfig struct {
	// MaxOrdersPerSide 每条订单序列的长度上限
	MaxOrdersPerSide int `yaml:"max_orders_per_side"`
	// DefaultMaxIterations 下单未指定 maxIterations 时的默认撮合上限
	DefaultMaxIterations int `yaml:"default_max_iterations"`
	// SettleBeforeDeadline 为 true 时结算必须发生在截止时间之前；
	// 方向做成配置而不是写死，便于产品复核。
	SettleBeforeDeadline bool `yaml:"settle_before_deadline"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"output_file"`
	MaxSize    int    `yaml:"max_size"`    // MB
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // 天
	Compress   bool   `yaml:"compress"`
}

// Default 返回带默认值的配置
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen: ":8080",
			DBPath: "data/clob.db",
		},
		Store: StoreConfig{
			Path: "data/records",
		},
		Engine: EngineConfig{
			MaxOrdersPerSide:     1000,
			DefaultMaxIterations: 16,
			SettleBeforeDeadline: true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Load 读取 YAML 配置文件并套用默认值；path 为空时直接返回默认配置。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if c.Engine.MaxOrdersPerSide <= 0 {
		return fmt.Errorf("engine.max_orders_per_side must be positive, got %d", c.Engine.MaxOrdersPerSide)
	}
	if c.Engine.DefaultMaxIterations <= 0 {
		return fmt.Errorf("engine.default_max_iterations must be positive, got %d", c.Engine.DefaultMaxIterations)
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required unless store.in_memory is set")
	}
	return nil
}
