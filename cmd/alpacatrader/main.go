// Command alpacatrader is the engine's entry point. It loads configuration,
// validates it, wires every component, and runs until an interrupt signal
// triggers a clean shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kpeterman/alpacatrader/internal/account"
	"github.com/kpeterman/alpacatrader/internal/config"
	"github.com/kpeterman/alpacatrader/internal/connectivity"
	"github.com/kpeterman/alpacatrader/internal/execution"
	"github.com/kpeterman/alpacatrader/internal/httpapi"
	"github.com/kpeterman/alpacatrader/internal/logsink"
	"github.com/kpeterman/alpacatrader/internal/marketdata"
	"github.com/kpeterman/alpacatrader/internal/orchestrator"
	"github.com/kpeterman/alpacatrader/internal/platform"
	"github.com/kpeterman/alpacatrader/internal/platform/alpaca"
	"github.com/kpeterman/alpacatrader/internal/platform/polygon"
	"github.com/kpeterman/alpacatrader/internal/position"
	"github.com/kpeterman/alpacatrader/internal/statehub"
	"github.com/kpeterman/alpacatrader/internal/supervisor"
	"github.com/kpeterman/alpacatrader/internal/tradelog"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(bootLogger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Error("failed to load config", slog.String("path", *configPath), slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		bootLogger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level := parseLevel(cfg.LogLevel)
	sink := logsink.New(os.Stdout, level, 4096)
	defer sink.Close()
	logger := slog.New(sink)
	slog.SetDefault(logger)

	logger.Info("alpacatrader starting", slog.String("symbol", cfg.Symbol), slog.String("mode", cfg.TradingMode))
	logger.Info("effective configuration", slog.Any("config", config.RedactedConfig(cfg)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && err != context.Canceled {
		logger.Error("engine exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	logger.Info("alpacatrader stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	connSup := connectivity.New(cfg.Connectivity)
	httpClient := httpapi.New(connSup, 0)

	tradingClient, err := alpaca.NewTradingClient(httpClient, cfg.API)
	if err != nil {
		return err
	}
	stockClient, err := alpaca.NewStockDataClient(httpClient, cfg.API)
	if err != nil {
		return err
	}
	if err := tradingClient.Initialize(ctx); err != nil {
		return err
	}
	if err := stockClient.Initialize(ctx); err != nil {
		return err
	}

	var cryptoClient *polygon.Client
	if cfg.IsCrypto() {
		cryptoClient, err = polygon.NewClient(cfg.API, cfg.Symbol, cfg.Accumulator, func(level, msg string) {
			logLine(logger, level, msg)
		})
		if err != nil {
			return err
		}
	}

	var router *platform.Router
	if cfg.IsCrypto() {
		router = platform.NewRouter(stockClient, cryptoClient, stockClient, cryptoClient, tradingClient, tradingClient)
	} else {
		router = platform.NewRouter(stockClient, nil, stockClient, nil, tradingClient, tradingClient)
	}

	tradeLog, err := tradelog.Open(cfg.TradeLogCSV)
	if err != nil {
		return err
	}
	defer tradeLog.Close()

	acctMgr := account.New(tradingClient, cfg.Symbol, time.Duration(cfg.Timing.ThreadAccountPollIntervalSec)*time.Second)
	fetcher := marketdata.New(router, cfg.Symbol, cfg.Strategy, acctMgr)

	hub := statehub.New()
	engine := execution.New(router, cfg.Symbol, cfg.Strategy, cfg.Timing)
	posMgr := position.New(router, cfg.Symbol, cfg.Strategy.MaximumReasonablePositionQuantity)
	orch := orchestrator.New(hub, router, engine, posMgr, tradeLog, cfg.Strategy, cfg.Timing, cfg.Symbol, cfg.IsCrypto(), logger)

	workers := []supervisor.Worker{
		{
			Name:     "market-data",
			Interval: time.Duration(cfg.Timing.ThreadMarketDataPollIntervalSec) * time.Second,
			Run: func(ctx context.Context) error {
				data, err := fetcher.Poll(ctx)
				if err != nil {
					return err
				}
				hub.PublishMarket(data.Market)
				return nil
			},
		},
		{
			Name:     "account",
			Interval: time.Duration(cfg.Timing.ThreadAccountPollIntervalSec) * time.Second,
			Run: func(ctx context.Context) error {
				snap, err := acctMgr.Fetch(ctx)
				if err != nil {
					return err
				}
				hub.PublishAccount(snap)
				return nil
			},
		},
	}
	sup := supervisor.New(logger, workers...)

	errCh := make(chan error, 2)
	go func() { errCh <- sup.Run(ctx) }()
	go func() { errCh <- orch.Run(ctx) }()

	<-ctx.Done()
	hub.Shutdown()
	_ = tradingClient.Disconnect()
	_ = stockClient.Disconnect()
	if cryptoClient != nil {
		_ = cryptoClient.Disconnect()
	}

	for i := 0; i < 2; i++ {
		<-errCh
	}
	return ctx.Err()
}

func logLine(logger *slog.Logger, level, msg string) {
	switch level {
	case "warn":
		logger.Warn(msg)
	case "error":
		logger.Error(msg)
	default:
		logger.Info(msg)
	}
}
