package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"order-bot-go/infrastructure/logger"
)

// Binance USDT-M 合约端点。
const (
	MainnetRESTURL = "https://fapi.binance.com"
	TestnetRESTURL = "https://testnet.binancefuture.com"
	MainnetWSURL   = "wss://fstream.binance.com"
	TestnetWSURL   = "wss://stream.binancefuture.com"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string        `yaml:"env"`
	Log     logger.Config `yaml:"log"`
	Gateway GatewayConfig `yaml:"gateway"`
	Twap    TwapConfig    `yaml:"twap"`
}

// GatewayConfig 交易所网关配置；密钥建议通过环境变量注入。
type GatewayConfig struct {
	APIKey       string  `yaml:"apiKey"`
	APISecret    string  `yaml:"apiSecret"`
	Testnet      bool    `yaml:"testnet"`
	BaseURL      string  `yaml:"baseURL"` // 留空则按 testnet 选择默认端点
	WSURL        string  `yaml:"wsURL"`
	RecvWindowMs int     `yaml:"recvWindowMs"`
	RestRate     float64 `yaml:"restRate"`  // REST 限流：每秒令牌数
	RestBurst    int     `yaml:"restBurst"` // REST 限流：最大突发令牌数
}

// TwapConfig TWAP 执行默认参数。
type TwapConfig struct {
	DefaultIntervalSeconds int `yaml:"defaultIntervalSeconds"`
}

// RESTURL 返回生效的 REST 端点。
func (g GatewayConfig) RESTURL() string {
	if g.BaseURL != "" {
		return g.BaseURL
	}
	if g.Testnet {
		return TestnetRESTURL
	}
	return MainnetRESTURL
}

// StreamURL 返回生效的 WebSocket 端点。
func (g GatewayConfig) StreamURL() string {
	if g.WSURL != "" {
		return g.WSURL
	}
	if g.Testnet {
		return TestnetWSURL
	}
	return MainnetWSURL
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func parse(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
// 先尝试加载工作目录下的 .env（不存在则忽略）。
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	_ = godotenv.Load()
	// 凭证校验推迟到覆盖之后，允许密钥只来自环境变量。
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		cfg.Gateway.APISecret = v
	}
	if v := os.Getenv("BINANCE_TESTNET"); v != "" {
		cfg.Gateway.Testnet = strings.EqualFold(v, "true")
	}
	return cfg, Validate(cfg)
}

// Default 返回内置默认值；Load 在其上覆盖文件内容。
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Log: logger.DefaultConfig(),
		Gateway: GatewayConfig{
			Testnet:      true,
			RecvWindowMs: 5000,
			RestRate:     5,
			RestBurst:    10,
		},
		Twap: TwapConfig{DefaultIntervalSeconds: 60},
	}
}
