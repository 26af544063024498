package backtest

import (
	"errors"
	"fmt"
	"math"

	"factor-backtest/internal/performance"
)

const (
	DefaultInitialCapital = 10000.0
	DefaultCostRate       = 0.001
)

// ErrInvalidOptions 表示回测参数非法。
var ErrInvalidOptions = errors.New("backtest: 参数非法")

// Options 定义单次模拟的资金与费率。
type Options struct {
	InitialCapital float64 // 初始资金
	CostRate       float64 // 按信号变化幅度收取的比例费率
}

// DefaultOptions 返回默认模拟参数。
func DefaultOptions() Options {
	return Options{InitialCapital: DefaultInitialCapital, CostRate: DefaultCostRate}
}

func (o *Options) normalize() Options {
	opts := *o
	if opts.InitialCapital == 0 {
		opts.InitialCapital = DefaultInitialCapital
	}
	return opts
}

func (o Options) validate() error {
	if o.InitialCapital <= 0 || math.IsNaN(o.InitialCapital) || math.IsInf(o.InitialCapital, 0) {
		return fmt.Errorf("%w: initial capital=%v", ErrInvalidOptions, o.InitialCapital)
	}
	if o.CostRate < 0 || math.IsNaN(o.CostRate) || math.IsInf(o.CostRate, 0) {
		return fmt.Errorf("%w: cost rate=%v", ErrInvalidOptions, o.CostRate)
	}
	return nil
}

// Config 定义整轮回测（多策略 × 多标的）的参数。
type Config struct {
	Options
	Workers int                 // 并发模拟的策略数，<=0 表示不限
	Metrics performance.Options // 指标年化参数
}

func (c *Config) normalize() Config {
	cfg := *c
	cfg.Options = c.Options.normalize()
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	return cfg
}
