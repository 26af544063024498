// Package app 串联行情加载、回测、报告与查询服务。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"factor-backtest/internal/backtest"
	"factor-backtest/internal/config"
	"factor-backtest/internal/factor"
	"factor-backtest/internal/marketdata"
	"factor-backtest/internal/performance"
	"factor-backtest/internal/report"
	"factor-backtest/internal/store"
)

// App 聚合核心依赖并驱动一次完整的回测。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	source marketdata.CandleSource
	out    io.Writer
}

// New 创建 App 实例，store 为 nil 时不持久化结果。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store, source marketdata.CandleSource) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		source: source,
		out:    os.Stdout,
	}
}

// WithOutput 指定指标表的输出位置。
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// Run 执行 加载 → 回测 → 输出 → 持久化；开启查询服务时阻塞至 ctx 结束。
// 没有可用数据时记录日志并返回 nil。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("回测系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.Strings("symbols", a.cfg.Data.Symbols),
		zap.Strings("strategies", a.cfg.Strategies.Enabled),
	)

	registry, err := factor.FromConfig(a.cfg.Strategies)
	if err != nil {
		return fmt.Errorf("构建策略失败: %w", err)
	}

	engine, err := backtest.NewEngine(backtest.Config{
		Options: backtest.Options{
			InitialCapital: a.cfg.Backtest.InitialCapital,
			CostRate:       a.cfg.Backtest.CostRate,
		},
		Workers: a.cfg.Backtest.Workers,
		Metrics: performance.Options{
			RiskFreeRate:   a.cfg.Metrics.RiskFreeRate,
			PeriodsPerYear: a.cfg.Metrics.PeriodsPerYear,
			Variant:        performance.Variant(a.cfg.Metrics.Variant),
		},
	}, registry, a.logger)
	if err != nil {
		return err
	}

	loader, err := a.newLoader()
	if err != nil {
		return err
	}
	prices, err := loader.Load(ctx, marketdata.Request{
		Symbols: a.cfg.Data.Symbols,
		Start:   a.cfg.Data.Start,
		End:     a.cfg.Data.End,
	})
	if err != nil {
		return fmt.Errorf("加载行情失败: %w", err)
	}

	rep, err := engine.Run(ctx, prices)
	if backtest.IsNoData(err) {
		a.logger.Warn("无可用数据，回测终止", zap.Strings("symbols", a.cfg.Data.Symbols))
		return nil
	}
	if err != nil {
		return fmt.Errorf("回测执行失败: %w", err)
	}

	if err := report.Print(a.out, rep.Metrics); err != nil {
		return fmt.Errorf("输出指标失败: %w", err)
	}

	if a.cfg.Report.ExportCSV {
		paths, err := report.Export(a.cfg.Report.OutputDir, rep)
		if err != nil {
			a.logger.Warn("导出结果失败", zap.Strings("files", paths), zap.Error(err))
		} else {
			a.logger.Info("结果已导出", zap.Strings("files", paths))
		}
	}

	var repo *report.Repository
	if a.cfg.Report.Persist && a.store != nil {
		repo, err = report.NewRepository(ctx, a.store, a.logger)
		if err != nil {
			return err
		}
		if _, err := repo.SaveRun(ctx, a.runRecord(rep)); err != nil {
			return err
		}
	}

	if !a.cfg.Server.Enabled {
		return nil
	}
	if repo == nil {
		return errors.New("查询服务需要开启结果持久化")
	}
	return report.NewServer(repo, a.cfg.Server.Port, a.logger).Serve(ctx)
}

func (a *App) newLoader() (*marketdata.Loader, error) {
	var cache marketdata.Cache
	if a.cfg.Data.CacheDir != "" {
		c, err := marketdata.NewCache(a.cfg.Data.CacheDir, a.cfg.Data.CacheFormat)
		if err != nil {
			return nil, err
		}
		cache = c
	}
	return marketdata.NewLoader(a.source, cache, marketdata.Options{
		Timeframe:   a.cfg.Data.Timeframe,
		Refresh:     a.cfg.Data.Refresh,
		Concurrency: a.cfg.Data.Concurrency,
	}, a.logger), nil
}

func (a *App) runRecord(rep backtest.Report) report.Run {
	return report.Run{
		Symbols: a.cfg.Data.Symbols,
		Start:   a.cfg.Data.Start,
		End:     a.cfg.Data.End,
		Params: map[string]any{
			"strategies":       a.cfg.Strategies.Enabled,
			"initial_capital":  a.cfg.Backtest.InitialCapital,
			"cost_rate":        a.cfg.Backtest.CostRate,
			"risk_free_rate":   a.cfg.Metrics.RiskFreeRate,
			"periods_per_year": a.cfg.Metrics.PeriodsPerYear,
		},
		Metrics: rep.Metrics,
	}
}
