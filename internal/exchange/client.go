package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"factor-backtest/internal/config"
)

type ohlcvFetcher func(symbol, timeframe string, since, limit int64) ([]ccxt.OHLCV, error)

// Client 负责拉取历史K线并实现重试机制。
type Client struct {
	cfg         config.ExchangeConfig
	logger      *zap.Logger
	fetch       ohlcvFetcher
	loadMarkets func() error

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewClient 依据配置构造 Binance 现货或 USDⓈ-M 客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
		},
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	var (
		fetch ohlcvFetcher
		load  func() error
	)
	switch strings.ToLower(cfg.Name) {
	case "binance", "":
		ex := ccxt.NewBinance(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		fetch = func(symbol, timeframe string, since, limit int64) ([]ccxt.OHLCV, error) {
			return ex.FetchOHLCV(symbol,
				ccxt.WithFetchOHLCVTimeframe(timeframe),
				ccxt.WithFetchOHLCVSince(since),
				ccxt.WithFetchOHLCVLimit(limit),
			)
		}
		load = func() error {
			_, err := ex.LoadMarkets()
			return err
		}
	case "binanceusdm":
		userConfig["options"].(map[string]interface{})["defaultType"] = "future"
		ex := ccxt.NewBinanceusdm(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		fetch = func(symbol, timeframe string, since, limit int64) ([]ccxt.OHLCV, error) {
			return ex.FetchOHLCV(symbol,
				ccxt.WithFetchOHLCVTimeframe(timeframe),
				ccxt.WithFetchOHLCVSince(since),
				ccxt.WithFetchOHLCVLimit(limit),
			)
		}
		load = func() error {
			_, err := ex.LoadMarkets()
			return err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExchange, cfg.Name)
	}

	return newClient(cfg, fetch, load, logger), nil
}

func newClient(cfg config.ExchangeConfig, fetch ohlcvFetcher, load func() error, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if load == nil {
		load = func() error { return nil }
	}
	return &Client{
		cfg:         cfg,
		logger:      logger,
		fetch:       fetch,
		loadMarkets: load,
	}
}

// FetchCandles 分页拉取 [start, end] 区间内的K线，按时间升序返回。
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Candle, error) {
	limit := int64(c.cfg.PageLimit)
	if limit <= 0 {
		limit = 1000
	}
	since := start.UnixMilli()
	endMs := end.UnixMilli()

	var candles []Candle
	for since <= endMs {
		var page []ccxt.OHLCV
		err := c.callWithRetry(ctx, fmt.Sprintf("fetch_ohlcv_%s", timeframe), func() error {
			if err := c.ensureMarketsLoaded(ctx); err != nil {
				return err
			}
			result, err := c.fetch(symbol, timeframe, since, limit)
			if err != nil {
				return err
			}
			page = result
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("拉取 %s K线失败: %w", symbol, err)
		}
		if len(page) == 0 {
			break
		}

		for _, item := range page {
			if item.Timestamp < since || item.Timestamp > endMs {
				continue
			}
			candles = append(candles, Candle{
				Timestamp: time.UnixMilli(item.Timestamp).UTC(),
				Open:      item.Open,
				High:      item.High,
				Low:       item.Low,
				Close:     item.Close,
				Volume:    item.Volume,
			})
		}

		next := page[len(page)-1].Timestamp + 1
		if next <= since || int64(len(page)) < limit {
			break
		}
		since = next
	}

	c.logger.Debug("K线拉取完成",
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
		zap.Int("count", len(candles)),
	)
	return candles, nil
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.loadMarkets(); err != nil {
		return err
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载", zap.String("exchange", c.cfg.Name))
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= maxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := min(delay, maxDelay)
		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = min(delay*2, maxDelay)
	}
}

func classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		if ccxtErr.Type == ccxt.OnMaintenanceErrType {
			message := strings.TrimSpace(ccxtErr.Message)
			if message == "" {
				message = "exchange under maintenance"
			}
			return fmt.Errorf("%w: %s", ErrMaintenance, message), false
		}
		return err, IsRetryable(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}
