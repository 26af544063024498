// Package telemetry 暴露回测流水线的 Prometheus 指标。
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backtest_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	StrategyRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_strategy_runs_total", Help: "Strategy simulations by outcome"},
		[]string{"strategy", "status"},
	)
	PriceRows = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "backtest_price_rows", Help: "Rows in the most recent price table"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_price_cache_lookups_total", Help: "Price cache lookups by result"},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(StageDuration, StrategyRuns, PriceRows, CacheLookups)
}

// ObserveStage 记录某阶段自 start 起的耗时。
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// CountRun 记录一次策略模拟的结果。
func CountRun(strategy string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StrategyRuns.WithLabelValues(strategy, status).Inc()
}

// Handler 返回 /metrics 处理器。
func Handler() http.Handler {
	return promhttp.Handler()
}
