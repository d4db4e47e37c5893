package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 环境变量名（.env.<environment>.local 或进程环境）
const (
	EnvEnvironment = "ASPENS_ENV"
	EnvStackURL    = "ASPENS_MARKET_STACK_URL"
	EnvPrivateKey  = "ASPENS_PRIVATE_KEY"
)

// DefaultStackURL 默认的 Market Stack 地址（本地开发）
const DefaultStackURL = "http://127.0.0.1:50051"

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"output_file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Config 会话配置。核心自身不做任何文件 I/O，
// 配置加载只发生在这里和 cmd 前端里。
type Config struct {
	Environment    string        `yaml:"environment"`     // 环境名，例如 "anvil" / "testnet"
	StackURL       string        `yaml:"stack_url"`       // Market Stack 地址
	DefaultMarket  string        `yaml:"default_market"`  // 默认市场 ID（可选）
	PrivateKey     string        `yaml:"-"`               // 私钥只从环境变量读取，绝不写入配置文件
	RequestTimeout time.Duration `yaml:"request_timeout"` // RPC 请求超时
	Log            LogConfig     `yaml:"log"`
}

// Load 读取 YAML 配置文件，再用环境变量补全。
// path 为空时只走环境变量路径。
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = os.Getenv(EnvEnvironment)
	}
	if cfg.Environment == "" {
		cfg.Environment = "anvil"
	}

	// 加载 .env.<environment>.local（不存在时静默跳过）
	envFile := fmt.Sprintf(".env.%s.local", cfg.Environment)
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("加载环境文件 %s 失败: %w", envFile, err)
		}
	}

	if url := os.Getenv(EnvStackURL); url != "" {
		cfg.StackURL = url
	}
	if cfg.StackURL == "" {
		cfg.StackURL = DefaultStackURL
	}
	cfg.PrivateKey = os.Getenv(EnvPrivateKey)

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}
