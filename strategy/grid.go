package strategy

import (
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

// GridLevel 网格中已挂出的单个档位。
type GridLevel struct {
	OrderID  int64
	Side     order.Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Grid 一组网格挂单：下半区买入、上半区卖出。
type Grid struct {
	ID               string
	Symbol           string
	LowerPrice       decimal.Decimal
	UpperPrice       decimal.Decimal
	Levels           int
	QuantityPerLevel decimal.Decimal
	PriceStep        decimal.Decimal
	BuyLevels        []GridLevel
	SellLevels       []GridLevel
	Active           bool
	CreatedAt        time.Time
}

// GridManager 构建、撤销并登记网格。
type GridManager struct {
	sub Submitter
	log *logger.Logger

	mu    sync.RWMutex
	grids map[string]*Grid
}

// GridSummary Create 的受理结果。
type GridSummary struct {
	ID         string
	BuyOrders  int
	SellOrders int
}

func NewGridManager(sub Submitter, log *logger.Logger) *GridManager {
	if log == nil {
		log = logger.Nop()
	}
	return &GridManager{
		sub:   sub,
		log:   log,
		grids: make(map[string]*Grid),
	}
}

// Create 在 [lower, upper] 区间均匀放置 levels 个限价档位：
// 前一半买入、后一半卖出。单个档位挂单失败记录后跳过，不回滚已挂档位。
func (m *GridManager) Create(symbol string, lower, upper decimal.Decimal, levels int, quantityPerLevel decimal.Decimal) (GridSummary, error) {
	symbol = strings.ToUpper(symbol)
	if !order.IsValidSymbol(symbol) {
		return GridSummary{}, fmt.Errorf("%w: invalid symbol %q", order.ErrInvalidParameters, symbol)
	}
	if !order.IsValidPrice(lower) || !order.IsValidPrice(upper) {
		return GridSummary{}, fmt.Errorf("%w: grid prices must be positive", order.ErrInvalidParameters)
	}
	if !lower.LessThan(upper) {
		return GridSummary{}, fmt.Errorf("%w: lower price %s must be less than upper price %s", order.ErrInvalidParameters, lower, upper)
	}
	if levels < 2 {
		return GridSummary{}, fmt.Errorf("%w: grid levels must be at least 2, got %d", order.ErrInvalidParameters, levels)
	}
	if !order.IsValidQuantity(quantityPerLevel) {
		return GridSummary{}, fmt.Errorf("%w: invalid quantity per level %s", order.ErrInvalidParameters, quantityPerLevel)
	}

	priceStep := upper.Sub(lower).Div(decimal.NewFromInt(int64(levels - 1)))
	grid := &Grid{
		ID:               "GRID-" + uuid.NewString(),
		Symbol:           symbol,
		LowerPrice:       lower,
		UpperPrice:       upper,
		Levels:           levels,
		QuantityPerLevel: quantityPerLevel,
		PriceStep:        priceStep,
		Active:           true,
		CreatedAt:        time.Now().UTC(),
	}

	m.log.Info("creating grid",
		zap.String("grid_id", grid.ID), zap.String("symbol", symbol),
		zap.String("lower", lower.String()), zap.String("upper", upper.String()),
		zap.Int("levels", levels))

	for i := 0; i < levels; i++ {
		price := lower.Add(priceStep.Mul(decimal.NewFromInt(int64(i))))
		side := order.SideBuy
		if i >= levels/2 {
			side = order.SideSell
		}
		o, err := m.sub.PlaceLimit(symbol, side, quantityPerLevel, price, order.TIFGoodTillCancel)
		if err != nil {
			m.log.Warn("grid level placement failed",
				zap.String("grid_id", grid.ID), zap.String("price", price.String()), zap.Error(err))
			continue
		}
		level := GridLevel{OrderID: o.ID, Side: side, Price: price, Quantity: quantityPerLevel}
		if side == order.SideBuy {
			grid.BuyLevels = append(grid.BuyLevels, level)
		} else {
			grid.SellLevels = append(grid.SellLevels, level)
		}
	}

	m.mu.Lock()
	m.grids[grid.ID] = grid
	m.mu.Unlock()

	m.log.LogOrder("grid_created", grid.ID, map[string]interface{}{
		"symbol": symbol, "buy_orders": len(grid.BuyLevels), "sell_orders": len(grid.SellLevels),
	})
	return GridSummary{ID: grid.ID, BuyOrders: len(grid.BuyLevels), SellOrders: len(grid.SellLevels)}, nil
}

// Cancel 撤销网格全部档位，返回成功撤销的数量。
func (m *GridManager) Cancel(id string) (int, error) {
	m.mu.Lock()
	grid, ok := m.grids[id]
	m.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	cancelled := 0
	for _, level := range append(append([]GridLevel{}, grid.BuyLevels...), grid.SellLevels...) {
		if err := m.sub.Cancel(grid.Symbol, level.OrderID); err != nil {
			m.log.Warn("grid level cancel failed",
				zap.String("grid_id", id), zap.Int64("order_id", level.OrderID), zap.Error(err))
			continue
		}
		cancelled++
	}

	m.mu.Lock()
	grid.Active = false
	m.mu.Unlock()
	m.log.LogOrder("grid_canceled", id, map[string]interface{}{"cancelled_orders": cancelled})
	return cancelled, nil
}

// Get 返回网格快照。
func (m *GridManager) Get(id string) (Grid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	grid, ok := m.grids[id]
	if !ok {
		return Grid{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *grid, nil
}
