// Package risk implements the Risk Manager (C11): the daily P&L and
// exposure gate consulted before every trade attempt.
package risk

import "github.com/kpeterman/alpacatrader/internal/config"

// Gate is the outcome of Evaluate.
type Gate struct {
	DailyPnL    float64
	PnLOK       bool
	ExposureOK  bool
	Allowed     bool
}

// Evaluate computes the trade gate from the day's starting equity, current
// equity, and current exposure percentage.
func Evaluate(cfg config.StrategyConfig, initialEquity, currentEquity, exposurePct float64) Gate {
	dailyPnL := 0.0
	if initialEquity != 0 {
		dailyPnL = (currentEquity - initialEquity) / initialEquity
	}

	pnlOK := dailyPnL > cfg.MaxDailyLoss && dailyPnL < cfg.DailyProfitTarget
	exposureOK := exposurePct <= cfg.MaxExposurePct

	return Gate{
		DailyPnL:   dailyPnL,
		PnLOK:      pnlOK,
		ExposureOK: exposureOK,
		Allowed:    pnlOK && exposureOK,
	}
}
