package config

import (
	"errors"
	"fmt"
)

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
		return errors.New("gateway.apiKey/apiSecret is required (or env overrides)")
	}
	if cfg.Gateway.RecvWindowMs <= 0 {
		return fmt.Errorf("gateway.recvWindowMs must be > 0, got %d", cfg.Gateway.RecvWindowMs)
	}
	if cfg.Gateway.RestRate <= 0 {
		return fmt.Errorf("gateway.restRate must be > 0, got %v", cfg.Gateway.RestRate)
	}
	if cfg.Gateway.RestBurst <= 0 {
		return fmt.Errorf("gateway.restBurst must be > 0, got %d", cfg.Gateway.RestBurst)
	}
	if cfg.Twap.DefaultIntervalSeconds <= 0 {
		return fmt.Errorf("twap.defaultIntervalSeconds must be > 0, got %d", cfg.Twap.DefaultIntervalSeconds)
	}
	return nil
}
