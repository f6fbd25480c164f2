package order

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// 仅支持 USDT-M 合约交易对（以 USDT 结尾）。
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]+USDT$`)

// IsValidSymbol 校验交易对格式。
func IsValidSymbol(symbol string) bool {
	if symbol == "" {
		return false
	}
	return symbolPattern.MatchString(strings.ToUpper(symbol))
}

// IsValidSide 校验方向。
func IsValidSide(side Side) bool {
	switch Side(strings.ToUpper(string(side))) {
	case SideBuy, SideSell:
		return true
	default:
		return false
	}
}

// IsValidQuantity 校验数量为正。
func IsValidQuantity(quantity decimal.Decimal) bool {
	return quantity.IsPositive()
}

// IsValidPrice 校验价格为正。
func IsValidPrice(price decimal.Decimal) bool {
	return price.IsPositive()
}

// IsValidTimeInForce 校验有效期类型。
func IsValidTimeInForce(tif TimeInForce) bool {
	switch TimeInForce(strings.ToUpper(string(tif))) {
	case TIFGoodTillCancel, TIFImmediateOrCancel, TIFFillOrKill:
		return true
	default:
		return false
	}
}
