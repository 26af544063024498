// Package marketdata 负责获取、对齐并缓存日线收盘价。
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"factor-backtest/internal/exchange"
	"factor-backtest/internal/frame"
	"factor-backtest/internal/telemetry"
)

// CandleSource 提供单个标的的历史K线。
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]exchange.Candle, error)
}

// Options 控制拉取与缓存行为。
type Options struct {
	Timeframe   string
	Refresh     bool // 忽略已有缓存
	Concurrency int
}

// Request 描述一次价格表请求，区间为 [Start, End)。
type Request struct {
	Symbols []string
	Start   time.Time
	End     time.Time
}

// Loader 组合数据源与缓存，输出按日期对齐的收盘价表。
type Loader struct {
	source CandleSource
	cache  Cache
	opts   Options
	logger *zap.Logger
}

// NewLoader 创建加载器，cache 可为 nil 表示不使用缓存。
func NewLoader(source CandleSource, cache Cache, opts Options, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeframe == "" {
		opts.Timeframe = exchange.TimeframeDaily
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Loader{source: source, cache: cache, opts: opts, logger: logger}
}

// Load 返回请求标的的收盘价表，仅保留所有标的都有报价的日期。
// 任一标的没有数据时结果为空表。
func (l *Loader) Load(ctx context.Context, req Request) (frame.Table, error) {
	if len(req.Symbols) == 0 {
		return frame.Table{}, nil
	}
	if !req.End.After(req.Start) {
		return frame.Table{}, fmt.Errorf("marketdata: 结束日期 %s 必须晚于开始日期 %s",
			req.End.Format(frame.DateLayout), req.Start.Format(frame.DateLayout))
	}
	start := time.Now()
	defer telemetry.ObserveStage("load", start)

	key := CacheKey(req.Symbols, req.Start, req.End)
	if l.cache != nil && !l.opts.Refresh {
		cached, err := l.cache.Read(key)
		switch {
		case err == nil:
			if tbl, ok := selectSymbols(cached, req.Symbols); ok {
				telemetry.CacheLookups.WithLabelValues("hit").Inc()
				l.logger.Info("使用价格缓存", zap.String("key", key), zap.Int("rows", tbl.Rows()))
				return frame.DropIncomplete(tbl), nil
			}
			l.logger.Warn("价格缓存缺少标的，重新拉取", zap.String("key", key))
		case !errors.Is(err, ErrCacheMiss):
			l.logger.Warn("读取价格缓存失败，重新拉取", zap.String("key", key), zap.Error(err))
		}
		telemetry.CacheLookups.WithLabelValues("miss").Inc()
	}

	prices, err := l.fetch(ctx, req)
	if err != nil {
		return frame.Table{}, err
	}

	if l.cache != nil && !prices.Empty() {
		if err := l.cache.Write(key, prices); err != nil {
			l.logger.Warn("写入价格缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
	l.logger.Info("价格数据就绪",
		zap.Strings("symbols", req.Symbols),
		zap.Int("rows", prices.Rows()),
	)
	return prices, nil
}

func (l *Loader) fetch(ctx context.Context, req Request) (frame.Table, error) {
	if l.source == nil {
		return frame.Table{}, errors.New("marketdata: 未配置数据源")
	}
	candles := make([][]exchange.Candle, len(req.Symbols))
	// 交易所接口按闭区间返回。
	end := req.End.Add(-time.Millisecond)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(l.opts.Concurrency)
	for i, symbol := range req.Symbols {
		group.Go(func() error {
			result, err := l.source.FetchCandles(groupCtx, symbol, l.opts.Timeframe, req.Start, end)
			if err != nil {
				return fmt.Errorf("获取 %s 行情失败: %w", symbol, err)
			}
			candles[i] = result
			l.logger.Debug("行情获取完成", zap.String("symbol", symbol), zap.Int("count", len(result)))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return frame.Table{}, err
	}

	return align(req.Symbols, candles, req.Start, req.End), nil
}

// align 将各标的K线按自然日合并为宽表，并剔除任一标的缺失的日期。
func align(symbols []string, candles [][]exchange.Candle, start, end time.Time) frame.Table {
	byDay := make(map[time.Time][]float64)
	for j, series := range candles {
		for _, c := range series {
			if c.Timestamp.Before(start) || !c.Timestamp.Before(end) {
				continue
			}
			day := truncateDay(c.Timestamp)
			row, ok := byDay[day]
			if !ok {
				row = make([]float64, len(symbols))
				for k := range row {
					row[k] = math.NaN()
				}
				byDay[day] = row
			}
			row[j] = c.Close
		}
	}

	index := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		index = append(index, day)
	}
	sort.Slice(index, func(a, b int) bool { return index[a].Before(index[b]) })

	t := frame.NewTable(index, symbols)
	for i, day := range index {
		for j, v := range byDay[day] {
			t.Columns[j][i] = v
		}
	}
	return frame.DropIncomplete(t)
}

// selectSymbols 按请求顺序取列，缺少任一标的时返回 false。
func selectSymbols(t frame.Table, symbols []string) (frame.Table, bool) {
	out := frame.NewTable(t.Index, symbols)
	for j, sym := range symbols {
		col, ok := t.Column(sym)
		if !ok {
			return frame.Table{}, false
		}
		copy(out.Columns[j], col)
	}
	return out, true
}

func truncateDay(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
