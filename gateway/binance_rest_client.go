package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// timeNowMillis 可在测试中替换以获得确定性签名。
var timeNowMillis = func() int64 { return time.Now().UnixMilli() }

// BinanceRESTClient 签名版 USDT-M 合约 REST 客户端；HTTPClient 可注入 httptest。
type BinanceRESTClient struct {
	BaseURL      string
	APIKey       string
	Secret       string
	RecvWindowMs int
	HTTPClient   *http.Client
	Limiter      RateLimiter
}

// OrderResponse /fapi/v1/order 下单回报中本工具关心的字段。
type OrderResponse struct {
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Status      string `json:"status"`
	ExecutedQty string `json:"executedQty"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// PlaceMarket 提交 MARKET 单。
func (c *BinanceRESTClient) PlaceMarket(symbol, side string, quantity decimal.Decimal) (OrderResponse, error) {
	params := map[string]string{
		"symbol":   symbol,
		"side":     side,
		"type":     "MARKET",
		"quantity": quantity.String(),
	}
	return c.placeOrder(params)
}

// PlaceLimit 提交 LIMIT 单。
func (c *BinanceRESTClient) PlaceLimit(symbol, side, tif string, price, quantity decimal.Decimal) (OrderResponse, error) {
	params := map[string]string{
		"symbol":      symbol,
		"side":        side,
		"type":        "LIMIT",
		"timeInForce": tif,
		"price":       price.String(),
		"quantity":    quantity.String(),
	}
	return c.placeOrder(params)
}

// PlaceStopMarket 提交 STOP_MARKET 单（触价市价，OCO 的止损腿）。
func (c *BinanceRESTClient) PlaceStopMarket(symbol, side string, stopPrice, quantity decimal.Decimal) (OrderResponse, error) {
	params := map[string]string{
		"symbol":    symbol,
		"side":      side,
		"type":      "STOP_MARKET",
		"stopPrice": stopPrice.String(),
		"quantity":  quantity.String(),
	}
	return c.placeOrder(params)
}

func (c *BinanceRESTClient) placeOrder(params map[string]string) (OrderResponse, error) {
	var or OrderResponse
	body, err := c.doSigned(http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return or, err
	}
	if err := json.Unmarshal(body, &or); err != nil {
		return or, fmt.Errorf("decode order response: %w", err)
	}
	if or.OrderID == 0 {
		return or, fmt.Errorf("empty orderId in response")
	}
	return or, nil
}

// CancelOrder 撤销指定订单。
func (c *BinanceRESTClient) CancelOrder(symbol string, orderID int64) error {
	params := map[string]string{
		"symbol":  symbol,
		"orderId": strconv.FormatInt(orderID, 10),
	}
	_, err := c.doSigned(http.MethodDelete, "/fapi/v1/order", params)
	return err
}

// TickerPrice 查询最新成交价（公共接口，无需签名）。
func (c *BinanceRESTClient) TickerPrice(symbol string) (decimal.Decimal, error) {
	body, err := c.doPublic("/fapi/v1/ticker/price?symbol=" + url.QueryEscape(symbol))
	if err != nil {
		return decimal.Zero, err
	}
	var tp struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &tp); err != nil {
		return decimal.Zero, fmt.Errorf("decode ticker: %w", err)
	}
	price, err := decimal.NewFromString(tp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", tp.Price, err)
	}
	return price, nil
}

// Ping 检查 REST 连通性。
func (c *BinanceRESTClient) Ping() error {
	_, err := c.doPublic("/fapi/v1/ping")
	return err
}

// ServerTime 返回交易所服务器时间。
func (c *BinanceRESTClient) ServerTime() (time.Time, error) {
	body, err := c.doPublic("/fapi/v1/time")
	if err != nil {
		return time.Time{}, err
	}
	var st struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return time.Time{}, fmt.Errorf("decode server time: %w", err)
	}
	return time.UnixMilli(st.ServerTime), nil
}

// SymbolInfo exchangeInfo 中单个交易对的摘要。
type SymbolInfo struct {
	Symbol            string `json:"symbol"`
	Status            string `json:"status"`
	PricePrecision    int    `json:"pricePrecision"`
	QuantityPrecision int    `json:"quantityPrecision"`
}

// ExchangeInfo 查询指定交易对的交易规则，找不到返回错误。
func (c *BinanceRESTClient) ExchangeInfo(symbol string) (SymbolInfo, error) {
	body, err := c.doPublic("/fapi/v1/exchangeInfo?symbol=" + url.QueryEscape(symbol))
	if err != nil {
		return SymbolInfo{}, err
	}
	var ei struct {
		Symbols []SymbolInfo `json:"symbols"`
	}
	if err := json.Unmarshal(body, &ei); err != nil {
		return SymbolInfo{}, fmt.Errorf("decode exchangeInfo: %w", err)
	}
	for _, s := range ei.Symbols {
		if s.Symbol == symbol {
			return s, nil
		}
	}
	return SymbolInfo{}, fmt.Errorf("symbol %s not in exchangeInfo", symbol)
}

func (c *BinanceRESTClient) doSigned(method, path string, params map[string]string) ([]byte, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	params["timestamp"] = strconv.FormatInt(timeNowMillis(), 10)
	if c.RecvWindowMs > 0 {
		params["recvWindow"] = strconv.Itoa(c.RecvWindowMs)
	}
	query, sig := SignParams(params, c.Secret)
	endpoint := c.BaseURL + path + "?" + query + "&signature=" + url.QueryEscape(sig)
	req, err := http.NewRequest(method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	return c.do(req)
}

func (c *BinanceRESTClient) doPublic(pathAndQuery string) ([]byte, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+pathAndQuery, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *BinanceRESTClient) do(req *http.Request) ([]byte, error) {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Msg != "" {
			return nil, fmt.Errorf("binance api error %d: %s (http %d)", ae.Code, ae.Msg, resp.StatusCode)
		}
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
