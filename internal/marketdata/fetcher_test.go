package marketdata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kpeterman/alpacatrader/internal/account"
	"github.com/kpeterman/alpacatrader/internal/config"
	"github.com/kpeterman/alpacatrader/internal/domain"
	"github.com/kpeterman/alpacatrader/internal/platform"
)

type fakeBars struct{ bars []domain.Bar }

func (f *fakeBars) GetRecentBars(ctx context.Context, req platform.BarRequest) ([]domain.Bar, error) {
	return f.bars, nil
}
func (f *fakeBars) GetHistoricalBars(ctx context.Context, symbol, timeframe, start, end string, limit int) ([]domain.Bar, error) {
	return f.bars, nil
}
func (f *fakeBars) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return f.bars[len(f.bars)-1].Close, nil
}

type fakeTrading struct{}

func (fakeTrading) GetAccountInfo(ctx context.Context) (domain.AccountSnapshot, error) {
	return domain.AccountSnapshot{Equity: 1000, BuyingPower: 1000}, nil
}
func (fakeTrading) GetPositions(ctx context.Context) ([]domain.PositionDetails, error) { return nil, nil }
func (fakeTrading) GetOpenOrders(ctx context.Context) (int, error)                     { return 0, nil }
func (fakeTrading) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	return domain.OrderResult{}, nil
}
func (fakeTrading) CancelOrder(ctx context.Context, id string) error { return nil }
func (fakeTrading) ClosePosition(ctx context.Context, symbol string, qty float64) (domain.OrderResult, error) {
	return domain.OrderResult{}, nil
}

func genBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += 0.5
		bars[i] = domain.Bar{Open: price - 0.5, High: price + 0.3, Low: price - 0.8, Close: price, Volume: 1000, Timestamp: fmt.Sprintf("%d", 1700000000+i)}
	}
	return bars
}

func TestPollPublishesValidSnapshot(t *testing.T) {
	bars := genBars(20)
	router := platform.NewRouter(&fakeBars{bars: bars}, nil, nil, nil, nil, fakeTrading{})
	cfg := config.StrategyConfig{ATRPeriod: 14, ATRCalculationBars: 20, AverageATRComparisonMultiplier: 1.0, MinimumVolumeThreshold: 1}
	mgr := account.New(fakeTrading{}, "AAPL", time.Minute)
	f := New(router, "AAPL", cfg, mgr)

	data, err := f.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.Market.ATR <= 0 {
		t.Fatalf("expected positive ATR, got %v", data.Market.ATR)
	}
}

func TestPollRejectsInsufficientBars(t *testing.T) {
	bars := genBars(3)
	router := platform.NewRouter(&fakeBars{bars: bars}, nil, nil, nil, nil, fakeTrading{})
	cfg := config.StrategyConfig{ATRPeriod: 14, ATRCalculationBars: 3}
	mgr := account.New(fakeTrading{}, "AAPL", time.Minute)
	f := New(router, "AAPL", cfg, mgr)

	_, err := f.Poll(context.Background())
	if kind, ok := domain.KindOf(err); !ok || kind != domain.InvalidMarketData {
		t.Fatalf("expected InvalidMarketData, got %v", err)
	}
}
