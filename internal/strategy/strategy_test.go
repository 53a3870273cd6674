package strategy

import (
	"testing"

	"github.com/kpeterman/alpacatrader/internal/config"
	"github.com/kpeterman/alpacatrader/internal/domain"
)

func s1Config() config.StrategyConfig {
	return config.StrategyConfig{
		RiskPerTrade:                       0.01,
		RRRatio:                            2,
		EntrySignalATRMultiplier:           1.5,
		VolumeMultiplier:                   2,
		DojiRatio:                          0.1,
		MaxExposurePct:                     50,
		MaximumDollarValuePerSingleTrade:   1_000_000,
		BuyingPowerValidationSafetyMargin:  0.9,
		StrengthWeightPriceChange:          0.34,
		StrengthWeightATRRatio:             0.33,
		StrengthWeightVolRatio:             0.33,
	}
}

func s1Snapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		ATR: 1.0, AvgATR: 0.5, AvgVol: 1000,
		Curr: domain.Bar{Open: 99, High: 101, Low: 98.8, Close: 100.5, Volume: 5000, Timestamp: "2"},
		Prev: domain.Bar{Open: 98, High: 100, Low: 97, Close: 99.7, Timestamp: "1"},
	}
}

func TestDetectSignalBuyOnUpwardMomentum(t *testing.T) {
	d := DetectSignal(s1Config(), s1Snapshot())
	if !d.Buy || d.Sell {
		t.Fatalf("expected BUY, got %+v", d)
	}
	if d.Strength < 0 || d.Strength > 1 {
		t.Fatalf("strength out of [0,1]: %v", d.Strength)
	}
}

func TestDetectSignalNoSignalOnAmbiguity(t *testing.T) {
	m := s1Snapshot()
	m.Curr.Close = m.Curr.Open // flat bar: buy and sell both false
	d := DetectSignal(s1Config(), m)
	if d.Buy || d.Sell {
		t.Fatalf("expected no signal, got %+v", d)
	}
}

func TestEvaluateFiltersAllPassOnS1(t *testing.T) {
	f := EvaluateFilters(s1Config(), s1Snapshot())
	if !f.AllPass {
		t.Fatalf("expected all filters to pass, got %+v", f)
	}
}

func TestEvaluateFiltersRejectsPriceOutsideBand(t *testing.T) {
	cfg := s1Config()
	cfg.MaximumAcceptablePriceForSignals = 100
	f := EvaluateFilters(cfg, s1Snapshot())
	if f.PriceBandPass || f.AllPass {
		t.Fatalf("expected price band to reject close=100.5 above max=100, got %+v", f)
	}
}

func TestSizePositionMatchesS1RiskBasedQty(t *testing.T) {
	sizing := SizePosition(s1Config(), 100_000, 0, 100, 100_000, 1.0, false)
	if sizing.RiskBasedQty != 1000 {
		t.Fatalf("expected risk_based_qty=1000, got %v", sizing.RiskBasedQty)
	}
	if sizing.Quantity < 0 {
		t.Fatalf("expected non-negative quantity, got %v", sizing.Quantity)
	}
}

func TestExitTargetsMatchS1(t *testing.T) {
	targets := ExitTargetsFor(s1Config(), 100.5, 1.0, true)
	if targets.StopLoss != 99.5 {
		t.Fatalf("expected stop_loss=99.5, got %v", targets.StopLoss)
	}
	if targets.TakeProfit != 102.5 {
		t.Fatalf("expected take_profit=102.5, got %v", targets.TakeProfit)
	}
}
