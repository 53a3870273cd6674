// Package indicator implements the technical indicator primitives (C9)
// consumed by the strategy logic: ATR and its moving average, average
// volume, and doji detection.
package indicator

import "github.com/kpeterman/alpacatrader/internal/domain"

// TrueRange computes TR_i = max(h-l, |h-prevClose|, |l-prevClose|).
func TrueRange(curr domain.Bar, prevClose float64) float64 {
	hl := curr.High - curr.Low
	hc := abs(curr.High - prevClose)
	lc := abs(curr.Low - prevClose)
	return max3(hl, hc, lc)
}

// ATR computes the simple moving average of true range over the last
// period bars of the series. bars must be ordered oldest-first. Returns 0
// if fewer than period+1 bars are available (need one bar of lookback for
// the first true-range sample).
func ATR(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}
	start := len(bars) - period
	sum := 0.0
	for i := start; i < len(bars); i++ {
		sum += TrueRange(bars[i], bars[i-1].Close)
	}
	return sum / float64(period)
}

// AverageATR computes ATR over period*multiplier bars, per the spec's
// "average ATR" definition.
func AverageATR(bars []domain.Bar, period int, multiplier float64) float64 {
	longPeriod := int(float64(period) * multiplier)
	return ATR(bars, longPeriod)
}

// AverageVolume computes the mean volume of the last period bars, floored
// at minThreshold.
func AverageVolume(bars []domain.Bar, period int, minThreshold float64) float64 {
	if period <= 0 || len(bars) == 0 {
		return minThreshold
	}
	n := period
	if n > len(bars) {
		n = len(bars)
	}
	sum := 0.0
	for _, b := range bars[len(bars)-n:] {
		sum += b.Volume
	}
	avg := sum / float64(n)
	if avg < minThreshold {
		return minThreshold
	}
	return avg
}

// IsDoji reports whether a bar's body is small relative to its range.
func IsDoji(b domain.Bar, dojiRatio float64) bool {
	rng := b.High - b.Low
	if rng <= 0 {
		return true
	}
	return abs(b.Close-b.Open) <= dojiRatio*rng
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
