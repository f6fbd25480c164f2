package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite 返回反方向（OCO 平仓腿使用）。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Type represents the exchange order type.
type Type string

const (
	TypeMarket           Type = "MARKET"
	TypeLimit            Type = "LIMIT"
	TypeStop             Type = "STOP"
	TypeStopMarket       Type = "STOP_MARKET"
	TypeTakeProfit       Type = "TAKE_PROFIT"
	TypeTakeProfitMarket Type = "TAKE_PROFIT_MARKET"
)

// TimeInForce values accepted by the exchange.
type TimeInForce string

const (
	TIFGoodTillCancel    TimeInForce = "GTC"
	TIFImmediateOrCancel TimeInForce = "IOC"
	TIFFillOrKill        TimeInForce = "FOK"
)

// Status represents order lifecycle.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusFilled   Status = "FILLED"
	StatusCanceled Status = "CANCELED"
	StatusRejected Status = "REJECTED"
)

// Order holds a simplified order view.
type Order struct {
	ID        int64
	Symbol    string
	Side      Side
	Type      Type
	Price     decimal.Decimal
	StopPrice decimal.Decimal
	Quantity  decimal.Decimal
	TIF       TimeInForce
	Status    Status
	CreatedAt time.Time
}
