package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"factor-backtest/internal/app"
	"factor-backtest/internal/config"
	"factor-backtest/internal/exchange"
	"factor-backtest/internal/log"
	"factor-backtest/internal/store"
)

func main() {
	var (
		configPath string
		serve      bool
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.BoolVar(&serve, "serve", false, "回测完成后启动结果查询服务")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "加载 .env 失败: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if serve {
		cfg.Server.Enabled = true
		cfg.Report.Persist = true
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	var sqliteStore *store.Store
	if cfg.Report.Persist {
		sqliteStore, err = store.NewSQLite(cfg.Database)
		if err != nil {
			logger.Error("初始化数据库失败", zap.Error(err))
			os.Exit(1)
		}
		defer func() {
			if closeErr := sqliteStore.Close(); closeErr != nil {
				logger.Warn("关闭数据库失败", zap.Error(closeErr))
			}
		}()
	}

	client, err := exchange.NewClient(cfg.Exchange, logger)
	if err != nil {
		logger.Error("初始化交易所客户端失败", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, logger, sqliteStore, client).Run(ctx); err != nil {
		logger.Error("回测运行异常", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("回测已完成")
}
