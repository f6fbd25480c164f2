package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"order-bot-go/config"
	"order-bot-go/gateway"
)

// API 连通性自检：凭证、REST 可达性、时钟偏移、交易对信息、行情价，
// 可选再验证标记价格 WebSocket 流。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	symbol := flag.String("symbol", "BTCUSDT", "检查用交易对")
	checkWS := flag.Bool("ws", false, "同时检查标记价格 WebSocket 流")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	sym := strings.ToUpper(strings.TrimSpace(*symbol))

	fmt.Println("=== 凭证检查 ===")
	if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
		fmt.Println("[FAIL] 缺少 API 凭证（BINANCE_API_KEY / BINANCE_SECRET_KEY）")
	} else {
		fmt.Printf("[ OK ] API Key: %s...%s\n", cfg.Gateway.APIKey[:min(4, len(cfg.Gateway.APIKey))], cfg.Gateway.APIKey[max(0, len(cfg.Gateway.APIKey)-4):])
	}
	fmt.Printf("端点: %s (testnet=%v)\n", cfg.Gateway.RESTURL(), cfg.Gateway.Testnet)

	client := &gateway.BinanceRESTClient{
		BaseURL:      cfg.Gateway.RESTURL(),
		APIKey:       cfg.Gateway.APIKey,
		Secret:       cfg.Gateway.APISecret,
		RecvWindowMs: cfg.Gateway.RecvWindowMs,
		HTTPClient:   gateway.NewDefaultHTTPClient(),
		Limiter:      gateway.NewTokenBucketLimiter(cfg.Gateway.RestRate, cfg.Gateway.RestBurst),
	}

	fmt.Println("\n=== REST 连通性 ===")
	if err := client.Ping(); err != nil {
		log.Fatalf("[FAIL] ping 失败: %v", err)
	}
	fmt.Println("[ OK ] ping 成功")

	serverTime, err := client.ServerTime()
	if err != nil {
		log.Fatalf("[FAIL] 获取服务器时间失败: %v", err)
	}
	drift := time.Since(serverTime)
	if drift < 0 {
		drift = -drift
	}
	fmt.Printf("服务器时间: %s，本地时钟偏移 %v\n", serverTime.Format(time.RFC3339), drift.Round(time.Millisecond))
	if drift > 5*time.Second {
		fmt.Println("[FAIL] 时钟偏移超过 5s，签名请求将被拒绝，请校准系统时间")
	} else {
		fmt.Println("[ OK ] 时钟同步正常")
	}

	fmt.Println("\n=== 交易对信息 ===")
	info, err := client.ExchangeInfo(sym)
	if err != nil {
		log.Fatalf("[FAIL] 获取 %s 交易对信息失败: %v", sym, err)
	}
	fmt.Printf("[ OK ] %s 状态=%s 价格精度=%d 数量精度=%d\n",
		info.Symbol, info.Status, info.PricePrecision, info.QuantityPrecision)

	price, err := client.TickerPrice(sym)
	if err != nil {
		log.Fatalf("[FAIL] 获取 %s 最新价失败: %v", sym, err)
	}
	fmt.Printf("[ OK ] %s 最新价 %s\n", sym, price)

	if *checkWS {
		fmt.Println("\n=== 标记价格流 ===")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		stream := gateway.NewMarkPriceStream(cfg.Gateway.StreamURL(), sym)
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				fmt.Printf("[FAIL] 标记价格流中断: %v\n", err)
			}
		}()

		deadline := time.After(10 * time.Second)
		tick := time.NewTicker(200 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-deadline:
				log.Fatalf("[FAIL] 10s 内未收到标记价格推送")
			case <-tick.C:
			}
			if mark, ok := stream.LastPrice(); ok {
				fmt.Printf("[ OK ] %s 标记价格 %s\n", sym, mark)
				return
			}
		}
	}
}
