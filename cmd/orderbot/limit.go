package main

import (
	"strings"

	"github.com/urfave/cli/v2"

	"order-bot-go/order"
)

var limitCommand = &cli.Command{
	Name:      "limit",
	Usage:     "限价单",
	ArgsUsage: "<command> <args>",
	Subcommands: []*cli.Command{
		{
			Name:   "buy",
			Usage:  "限价买入",
			Flags:  limitFlags(),
			Action: limitAction(order.SideBuy),
		},
		{
			Name:   "sell",
			Usage:  "限价卖出",
			Flags:  limitFlags(),
			Action: limitAction(order.SideSell),
		},
		{
			Name:  "cancel",
			Usage: "撤销挂单",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "symbol",
					Usage:    "交易对",
					Required: true,
				},
				&cli.Int64Flag{
					Name:     "orderId",
					Usage:    "交易所订单号",
					Required: true,
				},
			},
			Action: limitCancelAction,
		},
	},
}

func limitFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "symbol",
			Usage:    "交易对（例如 BTCUSDT）",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "quantity",
			Usage:    "下单数量",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "price",
			Usage:    "限价价格",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "tif",
			Value: "GTC",
			Usage: "有效方式：GTC/IOC/FOK",
		},
	}
}

func limitAction(side order.Side) cli.ActionFunc {
	return func(c *cli.Context) error {
		quantity, err := parseDecimal(c, "quantity")
		if err != nil {
			return err
		}
		price, err := parseDecimal(c, "price")
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		tif := order.TimeInForce(strings.ToUpper(c.String("tif")))
		o, err := a.manager.PlaceLimit(c.String("symbol"), side, quantity, price, tif)
		if err != nil {
			return err
		}
		jsonOutput(o)
		return nil
	}
}

func limitCancelAction(c *cli.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.manager.Cancel(c.String("symbol"), c.Int64("orderId")); err != nil {
		return err
	}
	jsonOutput(map[string]any{
		"symbol":   strings.ToUpper(c.String("symbol")),
		"order_id": c.Int64("orderId"),
		"status":   "CANCELED",
	})
	return nil
}
