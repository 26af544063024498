package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了回测系统运行所需的全部配置项。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Data       DataConfig       `mapstructure:"data"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Report     ReportConfig     `mapstructure:"report"`
	Server     ServerConfig     `mapstructure:"server"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述行情来源交易所。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	PageLimit  int         `mapstructure:"page_limit"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// DataConfig 描述价格数据范围与缓存。
type DataConfig struct {
	Symbols     []string  `mapstructure:"symbols"`
	Start       time.Time `mapstructure:"start"`
	End         time.Time `mapstructure:"end"`
	Timeframe   string    `mapstructure:"timeframe"`
	CacheDir    string    `mapstructure:"cache_dir"`
	CacheFormat string    `mapstructure:"cache_format"`
	Refresh     bool      `mapstructure:"refresh"`
	Concurrency int       `mapstructure:"concurrency"`
}

// StrategiesConfig 选择启用的因子规则及其参数。
type StrategiesConfig struct {
	Enabled       []string            `mapstructure:"enabled"`
	Momentum      MomentumConfig      `mapstructure:"momentum"`
	MeanReversion MeanReversionConfig `mapstructure:"mean_reversion"`
	MACrossover   MACrossoverConfig   `mapstructure:"ma_crossover"`
}

// MomentumConfig 动量规则参数。
type MomentumConfig struct {
	Lookback int `mapstructure:"lookback"`
}

// MeanReversionConfig 均值回归规则参数。
type MeanReversionConfig struct {
	Window    int     `mapstructure:"window"`
	Threshold float64 `mapstructure:"threshold"`
}

// MACrossoverConfig 均线交叉规则参数。
type MACrossoverConfig struct {
	ShortWindow int `mapstructure:"short_window"`
	LongWindow  int `mapstructure:"long_window"`
}

// BacktestConfig 控制模拟参数。
type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	CostRate       float64 `mapstructure:"cost_rate"`
	Workers        int     `mapstructure:"workers"`
}

// MetricsConfig 控制指标年化方式。
type MetricsConfig struct {
	RiskFreeRate   float64 `mapstructure:"risk_free_rate"`
	PeriodsPerYear int     `mapstructure:"periods_per_year"`
	Variant        string  `mapstructure:"variant"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ReportConfig 控制结果导出。
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	ExportCSV bool   `mapstructure:"export_csv"`
	Persist   bool   `mapstructure:"persist"`
}

// ServerConfig 控制结果查询与指标服务。
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Validate 对配置进行基本校验，一次返回全部问题。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	switch strings.ToLower(c.Exchange.Name) {
	case "binance", "binanceusdm":
	default:
		err = multierr.Append(err, fmt.Errorf("exchange.name 不支持 %q", c.Exchange.Name))
	}
	if c.Exchange.PageLimit <= 0 {
		err = multierr.Append(err, errors.New("exchange.page_limit 必须大于0"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if len(c.Data.Symbols) == 0 {
		err = multierr.Append(err, errors.New("data.symbols 至少包含一个标的"))
	}
	if c.Data.Start.IsZero() || c.Data.End.IsZero() {
		err = multierr.Append(err, errors.New("data.start 与 data.end 不能为空"))
	} else if !c.Data.End.After(c.Data.Start) {
		err = multierr.Append(err, errors.New("data.end 必须晚于 data.start"))
	}
	if c.Data.Timeframe == "" {
		err = multierr.Append(err, errors.New("data.timeframe 不能为空"))
	}
	switch c.Data.CacheFormat {
	case "", "csv", "parquet":
	default:
		err = multierr.Append(err, fmt.Errorf("data.cache_format 不支持 %q", c.Data.CacheFormat))
	}
	if c.Data.Concurrency <= 0 {
		err = multierr.Append(err, errors.New("data.concurrency 必须大于0"))
	}
	if len(c.Strategies.Enabled) == 0 {
		err = multierr.Append(err, errors.New("strategies.enabled 至少包含一个策略"))
	}
	if c.Strategies.Momentum.Lookback < 1 {
		err = multierr.Append(err, errors.New("strategies.momentum.lookback 必须大于0"))
	}
	if c.Strategies.MeanReversion.Window < 2 {
		err = multierr.Append(err, errors.New("strategies.mean_reversion.window 必须不小于2"))
	}
	if c.Strategies.MeanReversion.Threshold < 0 {
		err = multierr.Append(err, errors.New("strategies.mean_reversion.threshold 不能为负"))
	}
	if c.Strategies.MACrossover.ShortWindow < 1 {
		err = multierr.Append(err, errors.New("strategies.ma_crossover.short_window 必须大于0"))
	}
	if c.Strategies.MACrossover.LongWindow <= c.Strategies.MACrossover.ShortWindow {
		err = multierr.Append(err, errors.New("strategies.ma_crossover.long_window 必须大于 short_window"))
	}
	if c.Backtest.InitialCapital <= 0 {
		err = multierr.Append(err, errors.New("backtest.initial_capital 必须大于0"))
	}
	if c.Backtest.CostRate < 0 || c.Backtest.CostRate > 0.1 {
		err = multierr.Append(err, errors.New("backtest.cost_rate 应位于[0,0.1]"))
	}
	if c.Backtest.Workers < 0 {
		err = multierr.Append(err, errors.New("backtest.workers 不能为负"))
	}
	if c.Metrics.PeriodsPerYear <= 0 {
		err = multierr.Append(err, errors.New("metrics.periods_per_year 必须大于0"))
	}
	switch c.Metrics.Variant {
	case "full", "basic":
	default:
		err = multierr.Append(err, fmt.Errorf("metrics.variant 不支持 %q", c.Metrics.Variant))
	}
	if c.Report.Persist {
		if c.Database.Path == "" && !c.Database.InMemory {
			err = multierr.Append(err, errors.New("database.path 不能为空"))
		}
		if c.Database.MaxOpenConns <= 0 {
			err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
		}
		if c.Database.MaxIdleConns < 0 {
			err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
		}
	}
	if c.Report.ExportCSV && c.Report.OutputDir == "" {
		err = multierr.Append(err, errors.New("report.output_dir 不能为空"))
	}
	if c.Server.Enabled && !c.Report.Persist {
		err = multierr.Append(err, errors.New("server.enabled 需要同时开启 report.persist"))
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		err = multierr.Append(err, errors.New("server.port 必须位于(0,65535]"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
