package domain

import (
	"fmt"
	"math"
)

// Bar is an immutable OHLCV sample. Identity is Timestamp; ordering within a
// stream is expected to be non-decreasing in Timestamp but accumulator reads
// sort and dedupe defensively.
type Bar struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp string // milliseconds-since-epoch, string form
}

// Valid reports whether the bar satisfies the OHLC invariants required before
// it may be folded into an accumulator or published in a snapshot: finite
// positive prices, high >= low, high >= close, low <= close, non-negative
// volume.
func (b Bar) Valid() bool {
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if !isFinitePositive(p) {
			return false
		}
	}
	if b.Volume < 0 {
		return false
	}
	if b.High < b.Low || b.High < b.Close || b.Low > b.Close {
		return false
	}
	return true
}

func isFinitePositive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Quote is a best bid/ask snapshot.
type Quote struct {
	AskPrice  float64
	BidPrice  float64
	AskSize   float64
	BidSize   float64
	Timestamp string
}

// MidPrice returns (ask+bid)/2.
func (q Quote) MidPrice() float64 {
	return (q.AskPrice + q.BidPrice) / 2
}

// MarketSnapshot is produced by the market data fetcher and exchanged
// wholesale through the shared state hub. Zero ATR/AvgATR/AvgVol means
// "uncomputed".
type MarketSnapshot struct {
	ATR    float64
	AvgATR float64
	AvgVol float64
	Curr   Bar
	Prev   Bar
}

// Valid reports whether the snapshot is publishable: finite positive
// Curr.Close and a positive ATR.
func (m MarketSnapshot) Valid() bool {
	return isFinitePositive(m.Curr.Close) && m.ATR > 0
}

func (b Bar) String() string {
	return fmt.Sprintf("Bar{t=%s o=%.4f h=%.4f l=%.4f c=%.4f v=%.2f}", b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
}
