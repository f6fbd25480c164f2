package order

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsValidSymbol(t *testing.T) {
	cases := []struct {
		symbol string
		want   bool
	}{
		{"BTCUSDT", true},
		{"ethusdt", true}, // 大小写不敏感
		{"1000PEPEUSDT", true},
		{"BTCUSD", false},
		{"BTC-USDT", false},
		{"", false},
		{"USDTBTC", false},
	}
	for _, c := range cases {
		if got := IsValidSymbol(c.symbol); got != c.want {
			t.Errorf("IsValidSymbol(%q) = %v, want %v", c.symbol, got, c.want)
		}
	}
}

func TestIsValidSide(t *testing.T) {
	if !IsValidSide("buy") || !IsValidSide(SideSell) {
		t.Fatalf("expected BUY/SELL to be valid")
	}
	if IsValidSide("HOLD") || IsValidSide("") {
		t.Fatalf("expected invalid side rejected")
	}
}

func TestIsValidQuantityAndPrice(t *testing.T) {
	if !IsValidQuantity(decimal.RequireFromString("0.001")) {
		t.Fatalf("positive quantity should be valid")
	}
	if IsValidQuantity(decimal.Zero) || IsValidQuantity(decimal.NewFromInt(-1)) {
		t.Fatalf("non-positive quantity should be invalid")
	}
	if !IsValidPrice(decimal.NewFromInt(50000)) || IsValidPrice(decimal.Zero) {
		t.Fatalf("price validation mismatch")
	}
}

func TestIsValidTimeInForce(t *testing.T) {
	for _, tif := range []TimeInForce{"GTC", "ioc", "FOK"} {
		if !IsValidTimeInForce(tif) {
			t.Errorf("expected %q valid", tif)
		}
	}
	if IsValidTimeInForce("GTD") {
		t.Errorf("GTD should be invalid")
	}
}
