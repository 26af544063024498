package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "factor"
	dateLayout        = "2006-01-02"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigPath
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return decode(v)
}

// Default 仅使用默认值与环境变量构建配置，不读取文件。
func Default() (*Config, error) {
	return decode(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("exchange.name", "binance")
	v.SetDefault("exchange.use_sandbox", false)
	v.SetDefault("exchange.page_limit", 1000)
	v.SetDefault("exchange.retry.max_attempts", 5)
	v.SetDefault("exchange.retry.min_delay", "500ms")
	v.SetDefault("exchange.retry.max_delay", "5s")

	v.SetDefault("data.symbols", []string{"BTC/USDT", "ETH/USDT"})
	v.SetDefault("data.start", "2020-01-01")
	v.SetDefault("data.end", "2023-12-31")
	v.SetDefault("data.timeframe", "1d")
	v.SetDefault("data.cache_dir", "data/cache")
	v.SetDefault("data.cache_format", "csv")
	v.SetDefault("data.refresh", false)
	v.SetDefault("data.concurrency", 4)

	v.SetDefault("strategies.enabled", []string{"momentum", "mean_reversion", "ma_crossover"})
	v.SetDefault("strategies.momentum.lookback", 20)
	v.SetDefault("strategies.mean_reversion.window", 20)
	v.SetDefault("strategies.mean_reversion.threshold", 1.5)
	v.SetDefault("strategies.ma_crossover.short_window", 20)
	v.SetDefault("strategies.ma_crossover.long_window", 60)

	v.SetDefault("backtest.initial_capital", 10000.0)
	v.SetDefault("backtest.cost_rate", 0.001)
	v.SetDefault("backtest.workers", 0)

	v.SetDefault("metrics.risk_free_rate", 0.0)
	v.SetDefault("metrics.periods_per_year", 252)
	v.SetDefault("metrics.variant", "full")

	v.SetDefault("database.path", "data/backtest.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("report.output_dir", "data/reports")
	v.SetDefault("report.export_csv", true)
	v.SetDefault("report.persist", true)

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8090)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(dateLayout),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
