package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"order-bot-go/config"
	"order-bot-go/gateway"
	"order-bot-go/infrastructure/logger"
	"order-bot-go/metrics"
	"order-bot-go/order"
)

var (
	cfgPath     string
	metricsAddr string
)

// app 单条命令运行期间的公共依赖。
type app struct {
	cfg     config.AppConfig
	log     *logger.Logger
	client  *gateway.BinanceRESTClient
	limiter *gateway.TokenBucketLimiter
	manager *order.Manager
}

func newApp() (*app, error) {
	cfg, err := config.LoadWithEnvOverrides(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	limiter := gateway.NewTokenBucketLimiter(cfg.Gateway.RestRate, cfg.Gateway.RestBurst)
	client := &gateway.BinanceRESTClient{
		BaseURL:      cfg.Gateway.RESTURL(),
		APIKey:       cfg.Gateway.APIKey,
		Secret:       cfg.Gateway.APISecret,
		RecvWindowMs: cfg.Gateway.RecvWindowMs,
		HTTPClient:   gateway.NewDefaultHTTPClient(),
		Limiter:      limiter,
	}
	if metricsAddr != "" {
		if err := metrics.StartMetricsServer(metricsAddr); err != nil {
			_ = lg.Close()
			return nil, err
		}
	}
	return &app{
		cfg:     cfg,
		log:     lg,
		client:  client,
		limiter: limiter,
		manager: order.NewManager(client, lg),
	}, nil
}

func (a *app) close() {
	_ = a.log.Close()
}

func jsonOutput(in any) {
	j, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(j))
}

func parseDecimal(c *cli.Context, name string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(c.String(name))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s %q: %w", name, c.String(name), err)
	}
	return v, nil
}

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "orderbot"
	cliApp.Usage = "Binance USDT-M 合约下单工具"
	cliApp.EnableBashCompletion = true
	cliApp.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Value:       "configs/config.yaml",
			Usage:       "配置文件路径",
			Destination: &cfgPath,
		},
		&cli.StringFlag{
			Name:        "metricsAddr",
			Value:       "",
			Usage:       "Prometheus metrics 监听地址，留空则关闭",
			Destination: &metricsAddr,
		},
	}
	cliApp.Commands = []*cli.Command{
		marketCommand,
		limitCommand,
		advancedCommand,
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
