// Package twap implements time-weighted average price execution: a total
// quantity is split into equal market-order slices submitted at a fixed
// interval by a per-execution background loop.
package twap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"order-bot-go/infrastructure/logger"
	"order-bot-go/metrics"
	"order-bot-go/order"
)

var (
	ErrInvalidParameters = errors.New("invalid twap parameters")
	ErrNotFound          = errors.New("twap execution not found")
)

// MarketSubmitter 子单下发协作方；由 order.Manager 实现。
// 提交失败通过返回值传递，调用方决定如何处置。
type MarketSubmitter interface {
	PlaceMarket(symbol string, side order.Side, quantity decimal.Decimal) (order.Order, error)
}

// PriceSource 可选的参考价来源（标记价格流），仅用于执行日志。
type PriceSource interface {
	LastPrice() (price decimal.Decimal, ok bool)
}

// Params 一次 TWAP 执行的输入参数。
type Params struct {
	Symbol        string
	Side          order.Side
	TotalQuantity decimal.Decimal
	Duration      time.Duration // 总执行时长
	Interval      time.Duration // 子单间隔
}

// Placement 下单受理结果。
type Placement struct {
	ID               string
	SliceCount       int
	QuantityPerSlice decimal.Decimal
}

// Snapshot 执行进度的一致性快照。
type Snapshot struct {
	ID               string
	Symbol           string
	Side             order.Side
	State            State
	Active           bool
	TotalQuantity    decimal.Decimal
	QuantityPerSlice decimal.Decimal
	SliceCount       int
	ExecutedSlices   int
	ExecutedQuantity decimal.Decimal
	StartTime        time.Time
}

// execution 单次 TWAP 执行的登记记录。参数字段创建后不变；
// 进度字段仅由所属执行循环写入，与查询/取消并发，统一由 mu 保护。
type execution struct {
	id          string
	params      Params
	sliceCount  int
	qtyPerSlice decimal.Decimal

	cancel context.CancelFunc
	done   chan struct{}

	mu             sync.Mutex
	state          State
	active         bool
	attempts       int // 已消耗的执行周期数（含失败的子单）
	executedSlices int
	executedQty    decimal.Decimal
	startTime      time.Time
}

// Engine 维护 TWAP 执行注册表并驱动各自的后台执行循环。
type Engine struct {
	submitter MarketSubmitter
	log       *logger.Logger
	prices    PriceSource

	mu         sync.RWMutex
	executions map[string]*execution
}

func NewEngine(submitter MarketSubmitter, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		submitter:  submitter,
		log:        log,
		executions: make(map[string]*execution),
	}
}

// SetPriceSource 注入参考价来源；必须在 Place 之前调用。
func (e *Engine) SetPriceSource(ps PriceSource) {
	e.prices = ps
}

// Place 校验参数、计算切片计划、登记执行并启动后台循环。
// 调用立即返回，不等待任何子单提交。
func (e *Engine) Place(p Params) (Placement, error) {
	p.Symbol = strings.ToUpper(p.Symbol)
	p.Side = order.Side(strings.ToUpper(string(p.Side)))

	if !order.IsValidSymbol(p.Symbol) {
		return Placement{}, fmt.Errorf("%w: invalid symbol %q", ErrInvalidParameters, p.Symbol)
	}
	if !order.IsValidSide(p.Side) {
		return Placement{}, fmt.Errorf("%w: invalid side %q, must be BUY or SELL", ErrInvalidParameters, p.Side)
	}
	if !order.IsValidQuantity(p.TotalQuantity) {
		return Placement{}, fmt.Errorf("%w: invalid total quantity %s", ErrInvalidParameters, p.TotalQuantity)
	}
	if p.Duration <= 0 || p.Interval <= 0 {
		return Placement{}, fmt.Errorf("%w: duration and interval must be positive", ErrInvalidParameters)
	}
	sliceCount := int(p.Duration / p.Interval)
	if sliceCount < 1 {
		return Placement{}, fmt.Errorf("%w: interval %s exceeds duration %s, no slices to schedule",
			ErrInvalidParameters, p.Interval, p.Duration)
	}
	qtyPerSlice := p.TotalQuantity.Div(decimal.NewFromInt(int64(sliceCount)))

	ex := &execution{
		id:          "TWAP-" + uuid.NewString(),
		params:      p,
		sliceCount:  sliceCount,
		qtyPerSlice: qtyPerSlice,
		done:        make(chan struct{}),
		state:       StateCreated,
		active:      true,
		executedQty: decimal.Zero,
		startTime:   time.Now().UTC(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	ex.cancel = cancel

	e.mu.Lock()
	e.executions[ex.id] = ex
	e.mu.Unlock()

	e.log.Info("starting twap execution",
		zap.String("twap_id", ex.id),
		zap.String("symbol", p.Symbol),
		zap.String("side", string(p.Side)),
		zap.String("total_quantity", p.TotalQuantity.String()),
		zap.Int("slices", sliceCount),
		zap.String("quantity_per_slice", qtyPerSlice.String()),
		zap.Duration("interval", p.Interval))

	go e.run(ctx, ex)

	return Placement{ID: ex.id, SliceCount: sliceCount, QuantityPerSlice: qtyPerSlice}, nil
}

// Cancel 协作式取消：置 active 标志并唤醒等待中的循环，立即返回。
// 已进入终态的执行取消是无操作。不等待循环观察到标志。
func (e *Engine) Cancel(id string) error {
	ex, ok := e.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ex.mu.Lock()
	if ex.state.IsTerminal() {
		ex.mu.Unlock()
		return nil
	}
	ex.active = false
	ex.mu.Unlock()
	ex.cancel()

	e.log.Info("twap cancel requested", zap.String("twap_id", id))
	return nil
}

// Status 返回执行进度快照；进度字段作为整体读取，不会出现撕裂值。
func (e *Engine) Status(id string) (Snapshot, error) {
	ex, ok := e.lookup(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return Snapshot{
		ID:               ex.id,
		Symbol:           ex.params.Symbol,
		Side:             ex.params.Side,
		State:            ex.state,
		Active:           ex.active,
		TotalQuantity:    ex.params.TotalQuantity,
		QuantityPerSlice: ex.qtyPerSlice,
		SliceCount:       ex.sliceCount,
		ExecutedSlices:   ex.executedSlices,
		ExecutedQuantity: ex.executedQty,
		StartTime:        ex.startTime,
	}, nil
}

// Wait 阻塞直到执行进入终态或 ctx 取消（CLI 前台模式使用）。
func (e *Engine) Wait(ctx context.Context, id string) error {
	ex, ok := e.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	select {
	case <-ex.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) lookup(id string) (*execution, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ex, ok := e.executions[id]
	return ex, ok
}

// run 是单次执行的后台循环：每个周期提交一笔子单，周期耗尽或取消后收尾。
// 同一执行内子单严格串行；不同执行互不影响。
func (e *Engine) run(ctx context.Context, ex *execution) {
	defer close(ex.done)
	metrics.TwapActive.Inc()
	defer metrics.TwapActive.Dec()

	defer func() {
		if r := recover(); r != nil {
			ex.fail()
			e.log.Error("twap execution aborted by internal fault",
				zap.String("twap_id", ex.id), zap.Any("panic", r))
		}
	}()

	ex.transition(StateRunning)

	for ex.beginAttempt() {
		o, err := e.submitter.PlaceMarket(ex.params.Symbol, ex.params.Side, ex.qtyPerSlice)
		if err != nil {
			metrics.TwapSlicesFailed.Inc()
			// 单笔子单失败：记录后继续，不重试、不中止，等待下一周期
			e.log.Warn("twap slice submission failed",
				zap.String("twap_id", ex.id), zap.Error(err))
		} else {
			metrics.TwapSlicesExecuted.Inc()
			executed, total := ex.recordFill()
			fields := []zap.Field{
				zap.String("twap_id", ex.id),
				zap.Int64("order_id", o.ID),
				zap.String("progress", fmt.Sprintf("%d/%d", executed, total)),
			}
			if e.prices != nil {
				if mark, ok := e.prices.LastPrice(); ok {
					fields = append(fields, zap.String("mark_price", mark.String()))
				}
			}
			e.log.Info("twap slice executed", fields...)
		}

		if !ex.hasRemaining() {
			break
		}
		if !sleepInterval(ctx, ex.params.Interval) {
			break
		}
	}

	final := ex.finish()
	snap, _ := e.Status(ex.id)
	e.log.Info("twap execution finished",
		zap.String("twap_id", ex.id),
		zap.String("state", string(final)),
		zap.Int("executed_slices", snap.ExecutedSlices),
		zap.String("executed_quantity", snap.ExecutedQuantity.String()))
}

// beginAttempt 在仍然活跃且周期未耗尽时消耗一个周期。
func (ex *execution) beginAttempt() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if !ex.active || ex.attempts >= ex.sliceCount {
		return false
	}
	ex.attempts++
	return true
}

// hasRemaining 判断是否还需等待下一周期。
func (ex *execution) hasRemaining() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.active && ex.attempts < ex.sliceCount
}

// recordFill 原子推进进度：两个计数一起更新，保证快照一致。
func (ex *execution) recordFill() (executed, total int) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.executedSlices++
	ex.executedQty = ex.executedQty.Add(ex.qtyPerSlice)
	return ex.executedSlices, ex.sliceCount
}

func (ex *execution) transition(to State) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if canTransition(ex.state, to) {
		ex.state = to
	}
}

// finish 决定终态：周期耗尽为 COMPLETED，否则为 CANCELLED。终态落定后不再变化。
func (ex *execution) finish() State {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.state.IsTerminal() {
		return ex.state
	}
	to := StateCancelled
	if ex.attempts >= ex.sliceCount {
		to = StateCompleted
	}
	if !canTransition(ex.state, to) {
		to = StateFailed
	}
	ex.state = to
	ex.active = false
	return to
}

func (ex *execution) fail() {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if !ex.state.IsTerminal() {
		ex.state = StateFailed
	}
	ex.active = false
}

// sleepInterval 等待下一周期；取消会提前唤醒并返回 false。
func sleepInterval(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
