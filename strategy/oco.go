// Package strategy implements composite order placement on top of the
// order manager: OCO pairs and grid ladders.
package strategy

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"order-bot-go/infrastructure/logger"
	"order-bot-go/order"
)

var ErrNotFound = errors.New("strategy order not found")

// Submitter 聚合 OCO/网格所需的下单能力，由 order.Manager 实现。
type Submitter interface {
	PlaceLimit(symbol string, side order.Side, quantity, price decimal.Decimal, tif order.TimeInForce) (order.Order, error)
	PlaceStopMarket(symbol string, side order.Side, quantity, stopPrice decimal.Decimal) (order.Order, error)
	Cancel(symbol string, orderID int64) error
}

// OCOPair 一组止盈/止损订单；任一成交后另一条应由上层撤销。
type OCOPair struct {
	ID                string
	Symbol            string
	Side              order.Side // 开仓方向；两条腿均为反方向
	Quantity          decimal.Decimal
	TakeProfitPrice   decimal.Decimal
	StopLossPrice     decimal.Decimal
	TakeProfitOrderID int64
	StopLossOrderID   int64
	Active            bool
	CreatedAt         time.Time
}

// OCOManager 下发并登记 OCO 订单对。
type OCOManager struct {
	sub Submitter
	log *logger.Logger

	mu    sync.RWMutex
	pairs map[string]*OCOPair
}

func NewOCOManager(sub Submitter, log *logger.Logger) *OCOManager {
	if log == nil {
		log = logger.Nop()
	}
	return &OCOManager{
		sub:   sub,
		log:   log,
		pairs: make(map[string]*OCOPair),
	}
}

// Place 提交止盈 LIMIT + 止损 STOP_MARKET（均为平仓方向）。
// 止损腿失败时尽力撤销已提交的止盈腿，不留下单腿敞口。
func (m *OCOManager) Place(symbol string, side order.Side, quantity, takeProfit, stopLoss decimal.Decimal) (OCOPair, error) {
	symbol = strings.ToUpper(symbol)
	side = order.Side(strings.ToUpper(string(side)))
	if !order.IsValidSymbol(symbol) {
		return OCOPair{}, fmt.Errorf("%w: invalid symbol %q", order.ErrInvalidParameters, symbol)
	}
	if !order.IsValidSide(side) {
		return OCOPair{}, fmt.Errorf("%w: invalid side %q", order.ErrInvalidParameters, side)
	}
	if !order.IsValidQuantity(quantity) {
		return OCOPair{}, fmt.Errorf("%w: invalid quantity %s", order.ErrInvalidParameters, quantity)
	}
	if !order.IsValidPrice(takeProfit) || !order.IsValidPrice(stopLoss) {
		return OCOPair{}, fmt.Errorf("%w: take profit and stop loss prices must be positive", order.ErrInvalidParameters)
	}

	closeSide := side.Opposite()
	m.log.Info("placing oco pair",
		zap.String("symbol", symbol), zap.String("side", string(side)),
		zap.String("take_profit", takeProfit.String()), zap.String("stop_loss", stopLoss.String()))

	tp, err := m.sub.PlaceLimit(symbol, closeSide, quantity, takeProfit, order.TIFGoodTillCancel)
	if err != nil {
		return OCOPair{}, fmt.Errorf("place take profit leg: %w", err)
	}
	sl, err := m.sub.PlaceStopMarket(symbol, closeSide, quantity, stopLoss)
	if err != nil {
		if cerr := m.sub.Cancel(symbol, tp.ID); cerr != nil {
			m.log.LogError(cerr, map[string]interface{}{"symbol": symbol, "order_id": tp.ID, "stage": "oco_rollback"})
		}
		return OCOPair{}, fmt.Errorf("place stop loss leg: %w", err)
	}

	pair := &OCOPair{
		ID:                "OCO-" + uuid.NewString(),
		Symbol:            symbol,
		Side:              side,
		Quantity:          quantity,
		TakeProfitPrice:   takeProfit,
		StopLossPrice:     stopLoss,
		TakeProfitOrderID: tp.ID,
		StopLossOrderID:   sl.ID,
		Active:            true,
		CreatedAt:         time.Now().UTC(),
	}
	m.mu.Lock()
	m.pairs[pair.ID] = pair
	m.mu.Unlock()

	m.log.LogOrder("oco_placed", pair.ID, map[string]interface{}{
		"symbol": symbol, "tp_order_id": tp.ID, "sl_order_id": sl.ID,
	})
	return *pair, nil
}

// Cancel 撤销订单对的两条腿。
func (m *OCOManager) Cancel(id string) error {
	m.mu.Lock()
	pair, ok := m.pairs[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var errs []error
	if err := m.sub.Cancel(pair.Symbol, pair.TakeProfitOrderID); err != nil {
		errs = append(errs, fmt.Errorf("cancel take profit leg: %w", err))
	}
	if err := m.sub.Cancel(pair.Symbol, pair.StopLossOrderID); err != nil {
		errs = append(errs, fmt.Errorf("cancel stop loss leg: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	m.mu.Lock()
	pair.Active = false
	m.mu.Unlock()
	m.log.LogOrder("oco_canceled", id, map[string]interface{}{"symbol": pair.Symbol})
	return nil
}

// Get 返回订单对快照。
func (m *OCOManager) Get(id string) (OCOPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pair, ok := m.pairs[id]
	if !ok {
		return OCOPair{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *pair, nil
}
