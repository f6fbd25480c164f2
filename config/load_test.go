package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
env: test
log:
  level: debug
  outputs: [stdout]
  format: console
gateway:
  apiKey: k
  apiSecret: s
  testnet: true
twap:
  defaultIntervalSeconds: 30
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if cfg.Env != "test" {
		t.Fatalf("unexpected env %q", cfg.Env)
	}
	if cfg.Twap.DefaultIntervalSeconds != 30 {
		t.Fatalf("unexpected twap interval %d", cfg.Twap.DefaultIntervalSeconds)
	}
	// 文件未给出的字段保留默认值
	if cfg.Gateway.RecvWindowMs != 5000 {
		t.Fatalf("expected default recvWindow, got %d", cfg.Gateway.RecvWindowMs)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	path := writeConfig(t, "env: test\ngateway:\n  testnet: true\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected credential error")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "env-key")
	t.Setenv("BINANCE_SECRET_KEY", "env-secret")
	t.Setenv("BINANCE_TESTNET", "false")

	cfg, err := LoadWithEnvOverrides(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if cfg.Gateway.APIKey != "env-key" || cfg.Gateway.APISecret != "env-secret" {
		t.Fatalf("env overrides not applied: %+v", cfg.Gateway)
	}
	if cfg.Gateway.Testnet {
		t.Fatalf("testnet override not applied")
	}
}

func TestLoadWithEnvOnlyCredentials(t *testing.T) {
	// 文件不含密钥，只靠环境变量也要能通过校验
	t.Setenv("BINANCE_API_KEY", "env-key")
	t.Setenv("BINANCE_SECRET_KEY", "env-secret")

	cfg, err := LoadWithEnvOverrides(writeConfig(t, "env: test\ngateway:\n  testnet: true\n"))
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if cfg.Gateway.APIKey != "env-key" {
		t.Fatalf("env credentials not applied: %+v", cfg.Gateway)
	}
}

func TestEndpointSelection(t *testing.T) {
	g := GatewayConfig{Testnet: true}
	if g.RESTURL() != TestnetRESTURL {
		t.Fatalf("unexpected testnet url %s", g.RESTURL())
	}
	g.Testnet = false
	if g.RESTURL() != MainnetRESTURL {
		t.Fatalf("unexpected mainnet url %s", g.RESTURL())
	}
	g.BaseURL = "http://localhost:8080"
	if g.RESTURL() != "http://localhost:8080" {
		t.Fatalf("explicit baseURL not honored")
	}
	if g.StreamURL() != MainnetWSURL {
		t.Fatalf("unexpected ws url %s", g.StreamURL())
	}
}
