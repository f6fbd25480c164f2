package order

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"order-bot-go/gateway"
	"order-bot-go/infrastructure/logger"
	"order-bot-go/metrics"
)

// Exchange 提供基础下单/撤单抽象；与 gateway.BinanceRESTClient 对接。
type Exchange interface {
	PlaceMarket(symbol, side string, quantity decimal.Decimal) (gateway.OrderResponse, error)
	PlaceLimit(symbol, side, tif string, price, quantity decimal.Decimal) (gateway.OrderResponse, error)
	PlaceStopMarket(symbol, side string, stopPrice, quantity decimal.Decimal) (gateway.OrderResponse, error)
	CancelOrder(symbol string, orderID int64) error
}

var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrUnknownOrder      = errors.New("unknown order")
)

// Manager 校验输入、通过 Exchange 下发订单并登记回报。
type Manager struct {
	gw     Exchange
	log    *logger.Logger
	mu     sync.RWMutex
	orders map[int64]*Order
}

func NewManager(gw Exchange, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		gw:     gw,
		log:    log,
		orders: make(map[int64]*Order),
	}
}

// PlaceMarket 校验并提交 MARKET 单。
func (m *Manager) PlaceMarket(symbol string, side Side, quantity decimal.Decimal) (Order, error) {
	symbol, side = normalize(symbol, side)
	if !IsValidSymbol(symbol) {
		return Order{}, fmt.Errorf("%w: invalid symbol %q", ErrInvalidParameters, symbol)
	}
	if !IsValidSide(side) {
		return Order{}, fmt.Errorf("%w: invalid side %q, must be BUY or SELL", ErrInvalidParameters, side)
	}
	if !IsValidQuantity(quantity) {
		return Order{}, fmt.Errorf("%w: invalid quantity %s", ErrInvalidParameters, quantity)
	}

	m.log.Info("placing market order",
		zap.String("symbol", symbol), zap.String("side", string(side)), zap.String("quantity", quantity.String()))

	resp, err := m.gw.PlaceMarket(symbol, string(side), quantity)
	if err != nil {
		metrics.OrderFailures.WithLabelValues(string(TypeMarket)).Inc()
		m.log.LogError(err, map[string]interface{}{"symbol": symbol, "type": TypeMarket})
		return Order{}, fmt.Errorf("place market order: %w", err)
	}
	metrics.OrdersPlaced.WithLabelValues(string(TypeMarket), string(side)).Inc()

	o := Order{
		ID:        resp.OrderID,
		Symbol:    symbol,
		Side:      side,
		Type:      TypeMarket,
		Quantity:  quantity,
		Status:    statusOrDefault(resp.Status),
		CreatedAt: time.Now().UTC(),
	}
	m.register(o)
	m.log.LogOrder("market_order_placed", fmt.Sprint(o.ID), map[string]interface{}{"symbol": symbol, "side": side})
	return o, nil
}

// PlaceLimit 校验并提交 LIMIT 单；tif 为空时默认 GTC。
func (m *Manager) PlaceLimit(symbol string, side Side, quantity, price decimal.Decimal, tif TimeInForce) (Order, error) {
	symbol, side = normalize(symbol, side)
	if tif == "" {
		tif = TIFGoodTillCancel
	}
	tif = TimeInForce(strings.ToUpper(string(tif)))
	if !IsValidSymbol(symbol) {
		return Order{}, fmt.Errorf("%w: invalid symbol %q", ErrInvalidParameters, symbol)
	}
	if !IsValidSide(side) {
		return Order{}, fmt.Errorf("%w: invalid side %q, must be BUY or SELL", ErrInvalidParameters, side)
	}
	if !IsValidQuantity(quantity) {
		return Order{}, fmt.Errorf("%w: invalid quantity %s", ErrInvalidParameters, quantity)
	}
	if !IsValidPrice(price) {
		return Order{}, fmt.Errorf("%w: invalid price %s", ErrInvalidParameters, price)
	}
	if !IsValidTimeInForce(tif) {
		return Order{}, fmt.Errorf("%w: invalid time in force %q", ErrInvalidParameters, tif)
	}

	m.log.Info("placing limit order",
		zap.String("symbol", symbol), zap.String("side", string(side)),
		zap.String("quantity", quantity.String()), zap.String("price", price.String()))

	resp, err := m.gw.PlaceLimit(symbol, string(side), string(tif), price, quantity)
	if err != nil {
		metrics.OrderFailures.WithLabelValues(string(TypeLimit)).Inc()
		m.log.LogError(err, map[string]interface{}{"symbol": symbol, "type": TypeLimit})
		return Order{}, fmt.Errorf("place limit order: %w", err)
	}
	metrics.OrdersPlaced.WithLabelValues(string(TypeLimit), string(side)).Inc()

	o := Order{
		ID:        resp.OrderID,
		Symbol:    symbol,
		Side:      side,
		Type:      TypeLimit,
		Price:     price,
		Quantity:  quantity,
		TIF:       tif,
		Status:    statusOrDefault(resp.Status),
		CreatedAt: time.Now().UTC(),
	}
	m.register(o)
	m.log.LogOrder("limit_order_placed", fmt.Sprint(o.ID), map[string]interface{}{"symbol": symbol, "side": side, "price": price.String()})
	return o, nil
}

// PlaceStopMarket 校验并提交 STOP_MARKET 单（OCO 止损腿）。
func (m *Manager) PlaceStopMarket(symbol string, side Side, quantity, stopPrice decimal.Decimal) (Order, error) {
	symbol, side = normalize(symbol, side)
	if !IsValidSymbol(symbol) {
		return Order{}, fmt.Errorf("%w: invalid symbol %q", ErrInvalidParameters, symbol)
	}
	if !IsValidSide(side) {
		return Order{}, fmt.Errorf("%w: invalid side %q, must be BUY or SELL", ErrInvalidParameters, side)
	}
	if !IsValidQuantity(quantity) {
		return Order{}, fmt.Errorf("%w: invalid quantity %s", ErrInvalidParameters, quantity)
	}
	if !IsValidPrice(stopPrice) {
		return Order{}, fmt.Errorf("%w: invalid stop price %s", ErrInvalidParameters, stopPrice)
	}

	resp, err := m.gw.PlaceStopMarket(symbol, string(side), stopPrice, quantity)
	if err != nil {
		metrics.OrderFailures.WithLabelValues(string(TypeStopMarket)).Inc()
		m.log.LogError(err, map[string]interface{}{"symbol": symbol, "type": TypeStopMarket})
		return Order{}, fmt.Errorf("place stop market order: %w", err)
	}
	metrics.OrdersPlaced.WithLabelValues(string(TypeStopMarket), string(side)).Inc()

	o := Order{
		ID:        resp.OrderID,
		Symbol:    symbol,
		Side:      side,
		Type:      TypeStopMarket,
		StopPrice: stopPrice,
		Quantity:  quantity,
		Status:    statusOrDefault(resp.Status),
		CreatedAt: time.Now().UTC(),
	}
	m.register(o)
	m.log.LogOrder("stop_market_order_placed", fmt.Sprint(o.ID), map[string]interface{}{"symbol": symbol, "side": side, "stopPrice": stopPrice.String()})
	return o, nil
}

// Cancel 调用 Exchange 撤单并更新登记状态（未登记的订单也允许撤）。
func (m *Manager) Cancel(symbol string, orderID int64) error {
	symbol = strings.ToUpper(symbol)
	if err := m.gw.CancelOrder(symbol, orderID); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	m.mu.Lock()
	if o, ok := m.orders[orderID]; ok {
		o.Status = StatusCanceled
	}
	m.mu.Unlock()
	m.log.LogOrder("order_canceled", fmt.Sprint(orderID), map[string]interface{}{"symbol": symbol})
	return nil
}

// Get 返回已登记订单的快照。
func (m *Manager) Get(orderID int64) (Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func (m *Manager) register(o Order) {
	m.mu.Lock()
	m.orders[o.ID] = &o
	m.mu.Unlock()
}

func normalize(symbol string, side Side) (string, Side) {
	return strings.ToUpper(symbol), Side(strings.ToUpper(string(side)))
}

func statusOrDefault(s string) Status {
	if s == "" {
		return StatusNew
	}
	return Status(s)
}
