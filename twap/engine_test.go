package twap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-bot-go/order"
)

// fakeSubmitter 记录每次子单提交；gate 非空时每次提交消耗一个令牌。
type fakeSubmitter struct {
	mu    sync.Mutex
	calls int
	fail  bool
	gate  chan struct{}
}

func (f *fakeSubmitter) PlaceMarket(symbol string, side order.Side, qty decimal.Decimal) (order.Order, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.fail {
		return order.Order{}, errors.New("submission rejected")
	}
	return order.Order{ID: int64(n), Symbol: symbol, Side: side, Quantity: qty, Status: order.StatusFilled}, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func params(total string, duration, interval time.Duration) Params {
	return Params{
		Symbol:        "BTCUSDT",
		Side:          order.SideBuy,
		TotalQuantity: decimal.RequireFromString(total),
		Duration:      duration,
		Interval:      interval,
	}
}

func TestPlaceComputesSlicingPlan(t *testing.T) {
	e := NewEngine(&fakeSubmitter{}, nil)

	p, err := e.Place(params("100", 300*time.Second, 60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5, p.SliceCount)
	assert.True(t, p.QuantityPerSlice.Equal(decimal.NewFromInt(20)),
		"quantity per slice %s", p.QuantityPerSlice)
	require.NoError(t, e.Cancel(p.ID))
}

func TestPlaceSliceQuantityRoundTrip(t *testing.T) {
	e := NewEngine(&fakeSubmitter{}, nil)

	// 不能整除的数量：per-slice * count 与总量的误差在舍入容差内
	p, err := e.Place(params("10", 3*time.Minute, time.Minute))
	require.NoError(t, err)
	require.Equal(t, 3, p.SliceCount)
	reassembled := p.QuantityPerSlice.Mul(decimal.NewFromInt(3))
	diff := reassembled.Sub(decimal.RequireFromString("10")).Abs()
	assert.True(t, diff.LessThan(decimal.New(1, -9)), "diff %s", diff)
	require.NoError(t, e.Cancel(p.ID))
}

func TestPlaceRejectsIntervalExceedingDuration(t *testing.T) {
	e := NewEngine(&fakeSubmitter{}, nil)

	_, err := e.Place(params("100", 30*time.Second, 60*time.Second))
	require.ErrorIs(t, err, ErrInvalidParameters)

	// 校验失败不得登记任何执行
	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Empty(t, e.executions)
}

func TestPlaceValidation(t *testing.T) {
	e := NewEngine(&fakeSubmitter{}, nil)

	cases := []struct {
		name string
		p    Params
	}{
		{"bad symbol", Params{Symbol: "BTCUSD", Side: order.SideBuy, TotalQuantity: decimal.NewFromInt(1), Duration: time.Minute, Interval: time.Second}},
		{"bad side", Params{Symbol: "BTCUSDT", Side: "HOLD", TotalQuantity: decimal.NewFromInt(1), Duration: time.Minute, Interval: time.Second}},
		{"zero quantity", Params{Symbol: "BTCUSDT", Side: order.SideBuy, TotalQuantity: decimal.Zero, Duration: time.Minute, Interval: time.Second}},
		{"negative quantity", Params{Symbol: "BTCUSDT", Side: order.SideBuy, TotalQuantity: decimal.NewFromInt(-5), Duration: time.Minute, Interval: time.Second}},
		{"zero duration", Params{Symbol: "BTCUSDT", Side: order.SideBuy, TotalQuantity: decimal.NewFromInt(1), Duration: 0, Interval: time.Second}},
		{"zero interval", Params{Symbol: "BTCUSDT", Side: order.SideBuy, TotalQuantity: decimal.NewFromInt(1), Duration: time.Minute, Interval: 0}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := e.Place(c.p)
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

func TestRunToCompletion(t *testing.T) {
	sub := &fakeSubmitter{}
	e := NewEngine(sub, nil)

	p, err := e.Place(params("100", 50*time.Millisecond, 10*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, 5, p.SliceCount)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx, p.ID))

	snap, err := e.Status(p.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, snap.State)
	assert.False(t, snap.Active)
	assert.Equal(t, 5, snap.ExecutedSlices)
	assert.True(t, snap.ExecutedQuantity.Equal(decimal.NewFromInt(100)),
		"executed quantity %s", snap.ExecutedQuantity)
	assert.Equal(t, 5, sub.callCount())
}

func TestAllSlicesFailingStillCompletes(t *testing.T) {
	sub := &fakeSubmitter{fail: true}
	e := NewEngine(sub, nil)

	p, err := e.Place(params("30", 15*time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, 3, p.SliceCount)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx, p.ID))

	snap, err := e.Status(p.ID)
	require.NoError(t, err)
	// 周期耗尽即完成：失败的子单不重试也不导致 FAILED
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, 0, snap.ExecutedSlices)
	assert.True(t, snap.ExecutedQuantity.IsZero())
	assert.Equal(t, 3, sub.callCount())
}

func TestCancelStopsFurtherSlices(t *testing.T) {
	sub := &fakeSubmitter{gate: make(chan struct{}, 5)}
	e := NewEngine(sub, nil)

	// 前两笔放行，之后不再发放令牌
	sub.gate <- struct{}{}
	sub.gate <- struct{}{}

	p, err := e.Place(params("100", time.Second, 200*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, 5, p.SliceCount)

	// 等到两笔成交后（处于第 2、3 笔之间的等待期）立即取消
	require.Eventually(t, func() bool {
		snap, err := e.Status(p.ID)
		return err == nil && snap.ExecutedSlices == 2
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, e.Cancel(p.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx, p.ID))

	snap, err := e.Status(p.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, snap.State)
	assert.False(t, snap.Active)
	assert.Equal(t, 2, snap.ExecutedSlices)
	assert.True(t, snap.ExecutedQuantity.Equal(decimal.NewFromInt(40)),
		"executed quantity %s", snap.ExecutedQuantity)
	assert.Equal(t, 2, sub.callCount(), "no slice may dispatch after cancellation")

	// 终态粘滞：再等几个周期也不会有新的子单
	time.Sleep(500 * time.Millisecond)
	snap, _ = e.Status(p.ID)
	assert.Equal(t, 2, snap.ExecutedSlices)
	assert.Equal(t, StateCancelled, snap.State)
}

func TestCancelIsIdempotentAfterTerminal(t *testing.T) {
	sub := &fakeSubmitter{}
	e := NewEngine(sub, nil)

	p, err := e.Place(params("10", 10*time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx, p.ID))

	snap, _ := e.Status(p.ID)
	require.Equal(t, StateCompleted, snap.State)

	// 完成后的取消是无操作，终态不变
	require.NoError(t, e.Cancel(p.ID))
	snap, _ = e.Status(p.ID)
	assert.Equal(t, StateCompleted, snap.State)
}

func TestUnknownIDReturnsNotFound(t *testing.T) {
	e := NewEngine(&fakeSubmitter{}, nil)

	_, err := e.Status("TWAP-missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, e.Cancel("TWAP-missing"), ErrNotFound)
	assert.ErrorIs(t, e.Wait(context.Background(), "TWAP-missing"), ErrNotFound)
}

func TestPlacementIDsAreUnique(t *testing.T) {
	e := NewEngine(&fakeSubmitter{}, nil)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		p, err := e.Place(params("10", time.Hour, time.Minute))
		require.NoError(t, err)
		require.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
		require.NoError(t, e.Cancel(p.ID))
	}
}

func TestConcurrentStatusSnapshotsAreConsistent(t *testing.T) {
	sub := &fakeSubmitter{}
	e := NewEngine(sub, nil)

	p, err := e.Place(params("100", 20*time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := 0
			for ctx.Err() == nil {
				snap, err := e.Status(p.ID)
				if err != nil {
					t.Errorf("status err: %v", err)
					return
				}
				if snap.ExecutedSlices < prev {
					t.Errorf("executed slices decreased: %d -> %d", prev, snap.ExecutedSlices)
				}
				prev = snap.ExecutedSlices
				if snap.ExecutedSlices > snap.SliceCount {
					t.Errorf("executed slices %d exceeds plan %d", snap.ExecutedSlices, snap.SliceCount)
				}
				// 两个进度字段必须成对推进
				want := snap.QuantityPerSlice.Mul(decimal.NewFromInt(int64(snap.ExecutedSlices)))
				if !snap.ExecutedQuantity.Equal(want) {
					t.Errorf("torn snapshot: slices=%d quantity=%s want %s",
						snap.ExecutedSlices, snap.ExecutedQuantity, want)
				}
				if snap.State == StateCompleted {
					return
				}
			}
		}()
	}

	require.NoError(t, e.Wait(ctx, p.ID))
	wg.Wait()
}
