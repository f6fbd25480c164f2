package main

import (
	"github.com/urfave/cli/v2"

	"order-bot-go/order"
)

var marketCommand = &cli.Command{
	Name:      "market",
	Usage:     "市价单",
	ArgsUsage: "<command> <args>",
	Subcommands: []*cli.Command{
		{
			Name:   "buy",
			Usage:  "市价买入",
			Flags:  marketFlags(),
			Action: marketAction(order.SideBuy),
		},
		{
			Name:   "sell",
			Usage:  "市价卖出",
			Flags:  marketFlags(),
			Action: marketAction(order.SideSell),
		},
	},
}

func marketFlags() []cli.Flag {
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
	}
}

func marketAction(side order.Side) cli.ActionFunc {
	return func(c *cli.Context) error {
		quantity, err := parseDecimal(c, "quantity")
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		o, err := a.manager.PlaceMarket(c.String("symbol"), side, quantity)
		if err != nil {
			return err
		}
		jsonOutput(o)
		return nil
	}
}
