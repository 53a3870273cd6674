// Package marketdata implements the Market Data Fetcher (C7): pulls the
// configured symbol's recent bars through the provider router, computes
// indicators, attaches account context, and validates the result before it
// is eligible for publication to the shared state hub.
package marketdata

import (
	"context"

	"github.com/kpeterman/alpacatrader/internal/account"
	"github.com/kpeterman/alpacatrader/internal/config"
	"github.com/kpeterman/alpacatrader/internal/domain"
	"github.com/kpeterman/alpacatrader/internal/indicator"
	"github.com/kpeterman/alpacatrader/internal/platform"
)

// Fetcher produces one MarketSnapshot per poll.
type Fetcher struct {
	router  *platform.Router
	symbol  string
	cfg     config.StrategyConfig
	account *account.Manager
}

// New builds a Fetcher.
func New(router *platform.Router, symbol string, cfg config.StrategyConfig, acctMgr *account.Manager) *Fetcher {
	return &Fetcher{router: router, symbol: symbol, cfg: cfg, account: acctMgr}
}

// Poll requests the last N=atr_calculation_bars bars, computes indicators,
// attaches account/exposure context, and returns a validated
// domain.ProcessedData. A domain.InvalidMarketData error means "no data this
// tick, do not publish" rather than a fatal condition.
func (f *Fetcher) Poll(ctx context.Context) (domain.ProcessedData, error) {
	dataProvider, err := f.router.DataBarsFor(f.symbol)
	if err != nil {
		return domain.ProcessedData{}, err
	}

	bars, err := dataProvider.GetRecentBars(ctx, platform.BarRequest{
		Symbol: f.symbol,
		Limit:  f.cfg.ATRCalculationBars,
	})
	if err != nil {
		return domain.ProcessedData{}, err
	}

	if len(bars) < f.cfg.ATRPeriod+2 {
		return domain.ProcessedData{}, domain.NewError(domain.InvalidMarketData, "marketdata: insufficient bars for atr_period")
	}

	for _, b := range bars {
		if !b.Valid() {
			return domain.ProcessedData{}, domain.NewError(domain.InvalidMarketData, "marketdata: invalid OHLC in returned bar "+b.String())
		}
	}

	atr := indicator.ATR(bars, f.cfg.ATRPeriod)
	avgATR := indicator.AverageATR(bars, f.cfg.ATRPeriod, f.cfg.AverageATRComparisonMultiplier)
	avgVol := indicator.AverageVolume(bars, f.cfg.ATRPeriod, f.cfg.MinimumVolumeThreshold)

	curr := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	snapshot := domain.MarketSnapshot{ATR: atr, AvgATR: avgATR, AvgVol: avgVol, Curr: curr, Prev: prev}
	if !snapshot.Valid() {
		return domain.ProcessedData{}, domain.NewError(domain.InvalidMarketData, "marketdata: snapshot failed finite/positive validation")
	}

	acctSnap, err := f.account.Fetch(ctx)
	if err != nil {
		return domain.ProcessedData{}, err
	}

	return domain.ProcessedData{
		Market:       snapshot,
		Account:      acctSnap,
		ExposurePct:  acctSnap.ExposurePct(),
	}, nil
}
