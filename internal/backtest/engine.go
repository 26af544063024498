package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"factor-backtest/internal/factor"
	"factor-backtest/internal/frame"
	"factor-backtest/internal/performance"
	"factor-backtest/internal/telemetry"
)

// BuyAndHoldName 为基准序列名前缀。
const BuyAndHoldName = "Buy&Hold"

// StrategyResult 保存单个策略的模拟结果。
type StrategyResult struct {
	Name   string
	Result Result
}

// Report 汇总一轮回测的全部输出。
type Report struct {
	Strategies []StrategyResult
	Returns    []frame.Series // 参与指标计算的序列，含买入持有基准
	Equity     []frame.Series // 各策略×标的净值曲线
	Metrics    performance.Record
}

// Engine 对同一价格表并行运行注册表中的全部策略。
type Engine struct {
	cfg      Config
	registry *factor.Registry
	logger   *zap.Logger
}

// NewEngine 构建回测引擎。
func NewEngine(cfg Config, registry *factor.Registry, logger *zap.Logger) (*Engine, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("backtest: 至少需要一个策略")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.normalize()
	if err := cfg.Options.validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, registry: registry, logger: logger}, nil
}

// Run 执行 信号 → 模拟 → 指标 全流程。价格表为空时返回 frame.ErrEmptyInput。
func (e *Engine) Run(ctx context.Context, prices frame.Table) (Report, error) {
	if err := frame.ValidatePrices(prices); err != nil {
		return Report{}, err
	}
	telemetry.PriceRows.Set(float64(prices.Rows()))

	rules := e.registry.Rules()
	results := make([]StrategyResult, len(rules))

	group, groupCtx := errgroup.WithContext(ctx)
	if e.cfg.Workers > 0 {
		group.SetLimit(e.cfg.Workers)
	}
	for i, rule := range rules {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			res, err := e.runRule(rule, prices)
			telemetry.CountRun(rule.Name(), err)
			if err != nil {
				return fmt.Errorf("策略 %s 执行失败: %w", rule.Name(), err)
			}
			results[i] = StrategyResult{Name: rule.Name(), Result: res}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Strategies: results}
	for _, sr := range results {
		for j, sym := range prices.Symbols {
			name := SeriesName(sr.Name, sym)
			report.Returns = append(report.Returns, sr.Result.Returns.Series(j, name))
			report.Equity = append(report.Equity, sr.Result.EquityCurve.Series(j, name))
		}
	}

	benchmark, err := BuyAndHold(prices)
	if err != nil {
		return Report{}, err
	}
	for j, sym := range prices.Symbols {
		report.Returns = append(report.Returns, benchmark.Series(j, SeriesName(BuyAndHoldName, sym)))
	}

	start := time.Now()
	report.Metrics = performance.Calculate(report.Returns, e.cfg.Metrics)
	telemetry.ObserveStage("metrics", start)

	e.logger.Info("回测完成",
		zap.Int("strategies", len(results)),
		zap.Int("symbols", prices.Cols()),
		zap.Int("bars", prices.Rows()),
		zap.Int("series", len(report.Metrics.Rows)),
	)
	return report, nil
}

func (e *Engine) runRule(rule factor.Rule, prices frame.Table) (Result, error) {
	start := time.Now()
	signals, err := rule.Generate(prices)
	telemetry.ObserveStage("signals", start)
	if err != nil {
		return Result{}, err
	}

	start = time.Now()
	res, err := Simulate(prices, signals, e.cfg.Options)
	telemetry.ObserveStage("simulate", start)
	if err != nil {
		return Result{}, err
	}

	e.logger.Debug("策略模拟完成", zap.String("strategy", rule.Name()))
	return res, nil
}

// SeriesName 生成 "<策略>_<标的>" 形式的序列名。
func SeriesName(strategy, symbol string) string {
	return strategy + "_" + symbol
}

// IsNoData 判断错误是否表示没有可用数据。
func IsNoData(err error) bool {
	return errors.Is(err, frame.ErrEmptyInput)
}
