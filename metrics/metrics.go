// Package metrics provides Prometheus metrics for the order bot
package metrics

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersPlaced 按类型/方向统计成功提交的订单数
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderbot_orders_placed_total",
		Help: "Orders successfully submitted to the exchange",
	}, []string{"type", "side"})

	// OrderFailures 按类型统计提交失败的订单数
	OrderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderbot_orders_failed_total",
		Help: "Order submissions rejected or errored",
	}, []string{"type"})

	// TwapSlicesExecuted TWAP 成功执行的子单数
	TwapSlicesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderbot_twap_slices_executed_total",
		Help: "TWAP child orders successfully executed",
	})

	// TwapSlicesFailed TWAP 提交失败的子单数
	TwapSlicesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderbot_twap_slices_failed_total",
		Help: "TWAP child orders that failed to submit",
	})

	// TwapActive 当前处于 Running 状态的 TWAP 数
	TwapActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderbot_twap_active",
		Help: "TWAP executions currently running",
	})
)

var registerHandlerOnce sync.Once

// StartMetricsServer 启动Prometheus指标服务器。
// 同步绑定端口，地址不可用时立即返回错误而不是在后台静默失败。
func StartMetricsServer(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	registerHandlerOnce.Do(func() {
		http.Handle("/metrics", promhttp.Handler())
	})
	go func() {
		_ = http.Serve(ln, nil)
	}()
	return nil
}
