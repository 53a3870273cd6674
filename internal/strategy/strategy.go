// Package strategy implements Strategy Logic (C10): signal detection,
// entry filters, position sizing, and exit-target computation.
package strategy

import (
	"math"

	"github.com/kpeterman/alpacatrader/internal/config"
	"github.com/kpeterman/alpacatrader/internal/domain"
	"github.com/kpeterman/alpacatrader/internal/indicator"
)

// DetectSignal evaluates the BUY/SELL momentum rule against one
// MarketSnapshot. Ties and ambiguity resolve to no signal.
func DetectSignal(cfg config.StrategyConfig, m domain.MarketSnapshot) domain.SignalDecision {
	buy := m.Curr.Close > m.Curr.Open && m.Curr.Close > m.Prev.Close
	sell := m.Curr.Close < m.Curr.Open && m.Curr.Close < m.Prev.Close

	if buy == sell {
		return domain.SignalDecision{Reason: "no directional agreement"}
	}

	strength := signalStrength(cfg, m)
	if buy {
		return domain.SignalDecision{Buy: true, Strength: strength, Reason: cfg.SignalBuyString}
	}
	return domain.SignalDecision{Sell: true, Strength: strength, Reason: cfg.SignalSellString}
}

// signalStrength combines normalized price change, ATR ratio, and volume
// ratio with configured weights (which must sum to 1, enforced by
// config.Validate).
func signalStrength(cfg config.StrategyConfig, m domain.MarketSnapshot) float64 {
	priceChange := 0.0
	if m.Prev.Close != 0 {
		priceChange = clamp01(math.Abs(m.Curr.Close-m.Prev.Close) / m.Prev.Close)
	}
	atrRatio := 0.0
	if m.AvgATR > 0 {
		atrRatio = clamp01(m.ATR / m.AvgATR / 2) // normalized around "2x avg ATR is maximal"
	}
	volRatio := 0.0
	if m.AvgVol > 0 {
		volRatio = clamp01(m.Curr.Volume / m.AvgVol / 3) // normalized around "3x avg vol is maximal"
	}

	return clamp01(
		cfg.StrengthWeightPriceChange*priceChange +
			cfg.StrengthWeightATRRatio*atrRatio +
			cfg.StrengthWeightVolRatio*volRatio,
	)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// EvaluateFilters computes atr_pass, vol_pass, and doji_pass for one
// MarketSnapshot.
func EvaluateFilters(cfg config.StrategyConfig, m domain.MarketSnapshot) domain.FilterResult {
	atrRatio := 0.0
	var atrPass bool
	if cfg.UseAbsoluteATRThreshold {
		atrPass = m.ATR >= cfg.ATRAbsoluteMinimumThreshold
	} else if m.AvgATR > 0 {
		atrRatio = m.ATR / m.AvgATR
		atrPass = atrRatio >= cfg.EntrySignalATRMultiplier
	}

	volRatio := 0.0
	var volPass bool
	if m.AvgVol > 0 {
		volRatio = m.Curr.Volume / m.AvgVol
		volPass = volRatio >= cfg.VolumeMultiplier
	}

	dojiPass := !indicator.IsDoji(m.Curr, cfg.DojiRatio)
	priceBandPass := priceWithinSignalBand(cfg, m.Curr.Close)

	return domain.FilterResult{
		ATRPass: atrPass, VolPass: volPass, DojiPass: dojiPass, PriceBandPass: priceBandPass,
		AllPass:  atrPass && volPass && dojiPass && priceBandPass,
		ATRRatio: atrRatio, VolRatio: volRatio,
	}
}

// priceWithinSignalBand reports whether price falls inside the configured
// acceptable range for acting on a signal; a zero bound on either side
// leaves that side unchecked.
func priceWithinSignalBand(cfg config.StrategyConfig, price float64) bool {
	if cfg.MinimumAcceptablePriceForSignals > 0 && price < cfg.MinimumAcceptablePriceForSignals {
		return false
	}
	if cfg.MaximumAcceptablePriceForSignals > 0 && price > cfg.MaximumAcceptablePriceForSignals {
		return false
	}
	return true
}

// SizePosition computes the four candidate quantities and the binding
// minimum, per the spec's risk/exposure/max-value/buying-power formulas.
// riskAmount is the ATR-derived per-share risk distance (= atr; see
// DESIGN.md for why no separate stop multiplier/cap is modeled).
func SizePosition(cfg config.StrategyConfig, equity, positionValue, currentPrice, buyingPower, atr float64, isCrypto bool) domain.PositionSizing {
	riskAmount := atr
	if riskAmount <= 0 || currentPrice <= 0 {
		return domain.PositionSizing{RiskAmount: riskAmount}
	}

	riskBasedQty := math.Floor(equity * cfg.RiskPerTrade / riskAmount)
	exposureBasedQty := math.Floor((cfg.MaxExposurePct*equity/100 - math.Abs(positionValue)) / currentPrice)
	maxValueQty := math.Floor(cfg.MaximumDollarValuePerSingleTrade / currentPrice)
	buyingPowerQty := math.Floor(buyingPower * cfg.BuyingPowerValidationSafetyMargin / currentPrice)

	qty := minOf(riskBasedQty, exposureBasedQty, maxValueQty, buyingPowerQty)
	if qty < 0 {
		qty = 0
	}
	if !isCrypto && cfg.MaximumShareQuantityPerSingleTrade > 0 && qty > cfg.MaximumShareQuantityPerSingleTrade {
		qty = cfg.MaximumShareQuantityPerSingleTrade
	}

	return domain.PositionSizing{
		Quantity:         qty,
		RiskAmount:       riskAmount,
		RiskBasedQty:     riskBasedQty,
		ExposureBasedQty: exposureBasedQty,
		MaxValueQty:      maxValueQty,
		BuyingPowerQty:   buyingPowerQty,
	}
}

func minOf(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// ExitTargetsFor computes stop_loss/take_profit for an entry at entryPrice
// with the given riskAmount and side.
func ExitTargetsFor(cfg config.StrategyConfig, entryPrice, riskAmount float64, buy bool) domain.ExitTargets {
	if buy {
		return domain.ExitTargets{
			StopLoss:   entryPrice - riskAmount,
			TakeProfit: entryPrice + cfg.RRRatio*riskAmount,
		}
	}
	return domain.ExitTargets{
		StopLoss:   entryPrice + riskAmount,
		TakeProfit: entryPrice - cfg.RRRatio*riskAmount,
	}
}
