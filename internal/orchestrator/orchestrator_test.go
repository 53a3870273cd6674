package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kpeterman/alpacatrader/internal/config"
	"github.com/kpeterman/alpacatrader/internal/domain"
	"github.com/kpeterman/alpacatrader/internal/execution"
	"github.com/kpeterman/alpacatrader/internal/platform"
	"github.com/kpeterman/alpacatrader/internal/position"
	"github.com/kpeterman/alpacatrader/internal/statehub"
	"github.com/kpeterman/alpacatrader/internal/tradelog"
)

type fakeTrading struct{ placed, closed int }

func (f *fakeTrading) GetAccountInfo(ctx context.Context) (domain.AccountSnapshot, error) {
	return domain.AccountSnapshot{Equity: 100_000, BuyingPower: 100_000}, nil
}
func (f *fakeTrading) GetPositions(ctx context.Context) ([]domain.PositionDetails, error) { return nil, nil }
func (f *fakeTrading) GetOpenOrders(ctx context.Context) (int, error)                     { return 0, nil }
func (f *fakeTrading) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	f.placed++
	return domain.OrderResult{Accepted: true, OrderID: "o-1"}, nil
}
func (f *fakeTrading) CancelOrder(ctx context.Context, id string) error { return nil }
func (f *fakeTrading) ClosePosition(ctx context.Context, symbol string, qty float64) (domain.OrderResult, error) {
	f.closed++
	return domain.OrderResult{Accepted: true}, nil
}

type fakeHours struct{ open bool }

func (h fakeHours) IsMarketOpen(ctx context.Context) (bool, error)         { return h.open, nil }
func (h fakeHours) IsWithinTradingHours(ctx context.Context) (bool, error) { return h.open, nil }

func strategyCfg() config.StrategyConfig {
	return config.StrategyConfig{
		RiskPerTrade: 0.01, RRRatio: 2, EntrySignalATRMultiplier: 1.0, VolumeMultiplier: 1.0,
		DojiRatio: 0.1, MaxExposurePct: 80, MaxDailyLoss: -0.1, DailyProfitTarget: 0.5,
		MaximumDollarValuePerSingleTrade: 1_000_000, BuyingPowerValidationSafetyMargin: 0.9,
		StrengthWeightPriceChange: 0.34, StrengthWeightATRRatio: 0.33, StrengthWeightVolRatio: 0.33,
		MaxRetries: 1, RetryDelayMs: 1,
	}
}

func timingCfg() config.TimingConfig {
	return config.TimingConfig{
		MarketDataStalenessThresholdSeconds: 3600,
		ThreadDecisionPollIntervalSec:       1,
	}
}

func TestRunExecutesOneCycleThenStopsOnShutdown(t *testing.T) {
	hub := statehub.New()
	ft := &fakeTrading{}
	router := platform.NewRouter(nil, nil, nil, nil, fakeHours{open: true}, ft)
	engine := execution.New(router, "AAPL", strategyCfg(), config.TimingConfig{})
	posMgr := position.New(router, "AAPL", 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	o := New(hub, router, engine, posMgr, nil, strategyCfg(), timingCfg(), "AAPL", false, logger)

	hub.PublishMarket(domain.MarketSnapshot{
		ATR: 1.0, AvgATR: 0.5, AvgVol: 1000,
		Curr: domain.Bar{Open: 99, High: 101, Low: 98.8, Close: 100.5, Volume: 5000, Timestamp: "2"},
		Prev: domain.Bar{Open: 98, High: 100, Low: 97, Close: 99.7, Timestamp: "1"},
	})
	hub.PublishAccount(domain.AccountSnapshot{Equity: 100_000, BuyingPower: 100_000})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(100 * time.Millisecond)
		hub.Shutdown()
	}()

	if err := o.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ft.placed == 0 {
		t.Fatal("expected at least one order placement")
	}
}

func TestRunAppendsAcceptedOrderToTradeLog(t *testing.T) {
	hub := statehub.New()
	ft := &fakeTrading{}
	router := platform.NewRouter(nil, nil, nil, nil, fakeHours{open: true}, ft)
	engine := execution.New(router, "AAPL", strategyCfg(), config.TimingConfig{})
	posMgr := position.New(router, "AAPL", 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	path := filepath.Join(t.TempDir(), "trades.csv")
	log, err := tradelog.Open(path)
	if err != nil {
		t.Fatalf("open trade log: %v", err)
	}
	defer log.Close()

	o := New(hub, router, engine, posMgr, log, strategyCfg(), timingCfg(), "AAPL", false, logger)

	hub.PublishMarket(domain.MarketSnapshot{
		ATR: 1.0, AvgATR: 0.5, AvgVol: 1000,
		Curr: domain.Bar{Open: 99, High: 101, Low: 98.8, Close: 100.5, Volume: 5000, Timestamp: "2"},
		Prev: domain.Bar{Open: 98, High: 100, Low: 97, Close: 99.7, Timestamp: "1"},
	})
	hub.PublishAccount(domain.AccountSnapshot{Equity: 100_000, BuyingPower: 100_000})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(100 * time.Millisecond)
		hub.Shutdown()
	}()

	if err := o.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trade log: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected trade log to contain at least the header")
	}
	if got := string(data); len(got) <= len("timestamp,symbol,side,qty,price,stop_loss,take_profit,order_id,status\n") {
		t.Fatalf("expected at least one appended row, got %q", got)
	}
}

func TestCheckMarketCloseFlattensWhenClosed(t *testing.T) {
	ft := &fakeTrading{}
	router := platform.NewRouter(nil, nil, nil, nil, fakeHours{open: false}, ft)
	posMgr := position.New(router, "AAPL", 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := New(statehub.New(), router, nil, posMgr, nil, strategyCfg(), timingCfg(), "AAPL", false, logger)

	skip := o.checkMarketClose(context.Background(), statehub.Consumed{Account: domain.AccountSnapshot{Position: domain.PositionDetails{Qty: 5}}})
	if !skip {
		t.Fatal("expected market-close handling to report the cycle as skipped")
	}
	if ft.closed != 1 {
		t.Fatalf("expected one position close, got %d", ft.closed)
	}
}
