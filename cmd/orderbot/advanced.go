package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"order-bot-go/config"
	"order-bot-go/gateway"
	"order-bot-go/order"
	"order-bot-go/strategy"
	"order-bot-go/twap"
)

var advancedCommand = &cli.Command{
	Name:      "advanced",
	Usage:     "高级订单：TWAP / OCO / 网格",
	ArgsUsage: "<command> <args>",
	Subcommands: []*cli.Command{
		{
			Name:  "twap",
			Usage: "TWAP 拆单执行，前台运行直到完成，Ctrl-C 取消",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "symbol",
					Usage:    "交易对（例如 BTCUSDT）",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "side",
					Usage:    "方向：BUY/SELL",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "totalQuantity",
					Usage:    "总下单数量",
					Required: true,
				},
				&cli.IntFlag{
					Name:     "durationMinutes",
					Usage:    "执行总时长（分钟）",
					Required: true,
				},
				&cli.IntFlag{
					Name:  "interval",
					Usage: "子单间隔（秒），缺省取配置 twap.defaultIntervalSeconds",
				},
				&cli.BoolFlag{
					Name:  "markPrice",
					Usage: "订阅标记价格流，执行日志带参考价",
				},
				&cli.DurationFlag{
					Name:  "statusEvery",
					Value: 30 * time.Second,
					Usage: "进度快照打印间隔，0 关闭",
				},
			},
			Action: twapAction,
		},
		{
			Name:  "oco",
			Usage: "OCO 止盈/止损订单对",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "symbol",
					Usage:    "交易对",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "side",
					Usage:    "持仓方向：BUY/SELL，两条腿自动取反向",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "quantity",
					Usage:    "下单数量",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "takeProfit",
					Usage:    "止盈价",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "stopLoss",
					Usage:    "止损价",
					Required: true,
				},
			},
			Action: ocoAction,
		},
		{
			Name:  "grid",
			Usage: "网格挂单：下半区买入、上半区卖出",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "symbol",
					Usage:    "交易对",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "lowerPrice",
					Usage:    "网格下界",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "upperPrice",
					Usage:    "网格上界",
					Required: true,
				},
				&cli.IntFlag{
					Name:  "gridLevels",
					Value: 5,
					Usage: "档位数量（至少 2）",
				},
				&cli.StringFlag{
					Name:     "quantityPerLevel",
					Usage:    "每档数量",
					Required: true,
				},
			},
			Action: gridAction,
		},
	},
}

func twapAction(c *cli.Context) error {
	total, err := parseDecimal(c, "totalQuantity")
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	engine := twap.NewEngine(a.manager, a.log)
	if c.Bool("markPrice") {
		stream := gateway.NewMarkPriceStream(a.cfg.Gateway.StreamURL(), c.String("symbol"))
		engine.SetPriceSource(stream)
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn("标记价格流中断", zap.Error(err))
			}
		}()
	}

	// 前台运行期间热加载配置：只应用日志级别与限流参数，其余字段重启生效。
	go func() {
		w := config.Watcher{Path: cfgPath}
		_ = w.Start(ctx, func(cfg config.AppConfig) {
			if err := a.log.SetLevel(cfg.Log.Level); err != nil {
				a.log.Warn("重载的日志级别无效", zap.Error(err))
			}
			a.limiter.SetRate(cfg.Gateway.RestRate, cfg.Gateway.RestBurst)
			a.log.Info("配置已热加载",
				zap.String("log_level", cfg.Log.Level),
				zap.Float64("rest_rate", cfg.Gateway.RestRate))
		}, func(err error) {
			a.log.Warn("配置热加载失败", zap.Error(err))
		})
	}()

	interval := time.Duration(c.Int("interval")) * time.Second
	if interval <= 0 {
		interval = time.Duration(a.cfg.Twap.DefaultIntervalSeconds) * time.Second
	}
	placement, err := engine.Place(twap.Params{
		Symbol:        c.String("symbol"),
		Side:          order.Side(strings.ToUpper(c.String("side"))),
		TotalQuantity: total,
		Duration:      time.Duration(c.Int("durationMinutes")) * time.Minute,
		Interval:      interval,
	})
	if err != nil {
		return err
	}
	jsonOutput(placement)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			a.log.Info("收到中断信号，取消 TWAP", zap.String("twap_id", placement.ID))
			_ = engine.Cancel(placement.ID)
		case <-ctx.Done():
		}
	}()

	if every := c.Duration("statusEvery"); every > 0 {
		go func() {
			t := time.NewTicker(every)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if snap, err := engine.Status(placement.ID); err == nil {
						jsonOutput(snap)
					}
				}
			}
		}()
	}

	if err := engine.Wait(context.Background(), placement.ID); err != nil {
		return err
	}
	stop()

	snap, err := engine.Status(placement.ID)
	if err != nil {
		return err
	}
	jsonOutput(snap)
	return nil
}

func ocoAction(c *cli.Context) error {
	quantity, err := parseDecimal(c, "quantity")
	if err != nil {
		return err
	}
	takeProfit, err := parseDecimal(c, "takeProfit")
	if err != nil {
		return err
	}
	stopLoss, err := parseDecimal(c, "stopLoss")
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	pair, err := strategy.NewOCOManager(a.manager, a.log).Place(
		c.String("symbol"), order.Side(strings.ToUpper(c.String("side"))),
		quantity, takeProfit, stopLoss)
	if err != nil {
		return err
	}
	jsonOutput(pair)
	return nil
}

func gridAction(c *cli.Context) error {
	lower, err := parseDecimal(c, "lowerPrice")
	if err != nil {
		return err
	}
	upper, err := parseDecimal(c, "upperPrice")
	if err != nil {
		return err
	}
	quantity, err := parseDecimal(c, "quantityPerLevel")
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	summary, err := strategy.NewGridManager(a.manager, a.log).Create(
		c.String("symbol"), lower, upper, c.Int("gridLevels"), quantity)
	if err != nil {
		return err
	}
	jsonOutput(summary)
	return nil
}
