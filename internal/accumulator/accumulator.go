// Package accumulator implements the two-level OHLCV bar accumulator (C4):
// incoming atomic bars fold into an L1 window, completed L1 bars fold into an
// L2 window, and both layers keep a bounded ring history.
package accumulator

import (
	"sort"
	"strconv"
	"sync"

	"github.com/kpeterman/alpacatrader/internal/domain"
)

// Accumulator owns one symbol's L1/L2 histories under its own lock, distinct
// from the shared state hub's lock: starting or resuming a feed never
// contends with the hub's snapshot exchange (see DESIGN.md open question on
// accumulator/hub lock separation).
type Accumulator struct {
	mu sync.Mutex

	l1Period    int
	l2Period    int // in units of L1 bars, i.e. L2_seconds / L1_seconds
	maxHistory  int

	l1History []domain.Bar
	l2History []domain.Bar

	l1Active   domain.Bar
	l1Counter  int
	l1HasActive bool

	l2Active    domain.Bar
	l2Counter   int
	l2HasActive bool
}

// New constructs an Accumulator. l1Seconds and l2Seconds are window lengths;
// l2Seconds must be an integer multiple of l1Seconds. maxHistory bounds each
// layer's ring history.
func New(l1Seconds, l2Seconds, maxHistory int) *Accumulator {
	if l1Seconds <= 0 || l2Seconds <= 0 || l2Seconds%l1Seconds != 0 || maxHistory <= 0 {
		panic("accumulator: invalid construction parameters")
	}
	return &Accumulator{
		l1Period:   l1Seconds, // each incoming bar is one atomic tick; L1 finalizes every l1Seconds ticks
		l2Period:   l2Seconds / l1Seconds,
		maxHistory: maxHistory,
	}
}

// NewWithTickCounts builds an Accumulator where l1TickCount atomic bars make
// one L1 bar and l2TickCount L1 bars make one L2 bar. Used directly by tests
// that want to drive the state machine bar-by-bar without modeling wall-clock
// seconds.
func NewWithTickCounts(l1TickCount, l2TickCount, maxHistory int) *Accumulator {
	if l1TickCount <= 0 || l2TickCount <= 0 || maxHistory <= 0 {
		panic("accumulator: invalid construction parameters")
	}
	return &Accumulator{
		l1Period:   l1TickCount,
		l2Period:   l2TickCount,
		maxHistory: maxHistory,
	}
}

// AddBar folds one incoming atomic bar into the active L1 window, finalizing
// and cascading into L2 as the configured periods are reached. Bars with any
// non-positive price, or an unparseable timestamp, are dropped.
func (a *Accumulator) AddBar(incoming domain.Bar) {
	if incoming.Open <= 0 || incoming.High <= 0 || incoming.Low <= 0 || incoming.Close <= 0 {
		return
	}
	if _, err := strconv.ParseInt(incoming.Timestamp, 10, 64); err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.foldL1(incoming)
}

func (a *Accumulator) foldL1(incoming domain.Bar) {
	if !a.l1HasActive {
		a.l1Active = incoming
		a.l1Counter = 1
		a.l1HasActive = true
	} else {
		a.l1Active.High = max(a.l1Active.High, incoming.High)
		a.l1Active.Low = min(a.l1Active.Low, incoming.Low)
		a.l1Active.Close = incoming.Close
		a.l1Active.Volume += incoming.Volume
		a.l1Active.Timestamp = incoming.Timestamp
		a.l1Counter++
	}

	if a.l1Counter >= a.l1Period {
		completed := a.l1Active
		a.l1History = appendBounded(a.l1History, completed, a.maxHistory)
		a.l1HasActive = false
		a.l1Counter = 0

		a.foldL2(completed)
	}
}

func (a *Accumulator) foldL2(completed domain.Bar) {
	if !a.l2HasActive {
		a.l2Active = completed
		a.l2Counter = 1
		a.l2HasActive = true
	} else {
		a.l2Active.High = max(a.l2Active.High, completed.High)
		a.l2Active.Low = min(a.l2Active.Low, completed.Low)
		a.l2Active.Close = completed.Close
		a.l2Active.Volume += completed.Volume
		a.l2Active.Timestamp = completed.Timestamp
		a.l2Counter++
	}

	if a.l2Counter >= a.l2Period {
		a.l2History = appendBounded(a.l2History, a.l2Active, a.maxHistory)
		a.l2HasActive = false
		a.l2Counter = 0
	}
}

func appendBounded(hist []domain.Bar, bar domain.Bar, max int) []domain.Bar {
	hist = append(hist, bar)
	if len(hist) > max {
		hist = hist[len(hist)-max:]
	}
	return hist
}

// GetAccumulatedBars chooses the densest layer that can already supply n
// bars (counting a valid in-progress active bar), falling back to a
// concatenation of L1 history + active L1 + tail of L2 history when neither
// layer alone suffices. The result is sorted by timestamp, deduped by
// timestamp, and truncated from the front to at most n bars.
func (a *Accumulator) GetAccumulatedBars(n int) []domain.Bar {
	a.mu.Lock()
	defer a.mu.Unlock()

	l1Count := len(a.l1History)
	if a.l1HasActive && a.l1Active.Valid() {
		l1Count++
	}
	if l1Count >= n {
		return a.finalize(a.withActive(a.l1History, a.l1Active, a.l1HasActive), n)
	}

	l2Count := len(a.l2History)
	if a.l2HasActive && a.l2Active.Valid() {
		l2Count++
	}
	if l2Count >= n {
		return a.finalize(a.withActive(a.l2History, a.l2Active, a.l2HasActive), n)
	}

	combined := append([]domain.Bar{}, a.l1History...)
	if a.l1HasActive && a.l1Active.Valid() {
		combined = append(combined, a.l1Active)
	}
	combined = append(combined, a.l2History...)
	return a.finalize(combined, n)
}

func (a *Accumulator) withActive(hist []domain.Bar, active domain.Bar, hasActive bool) []domain.Bar {
	out := append([]domain.Bar{}, hist...)
	if hasActive && active.Valid() {
		out = append(out, active)
	}
	return out
}

func (a *Accumulator) finalize(bars []domain.Bar, n int) []domain.Bar {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp < bars[j].Timestamp
	})

	deduped := make([]domain.Bar, 0, len(bars))
	var lastTS string
	seen := false
	for _, b := range bars {
		if seen && b.Timestamp == lastTS {
			deduped[len(deduped)-1] = b // later duplicate wins
			continue
		}
		deduped = append(deduped, b)
		lastTS = b.Timestamp
		seen = true
	}

	if len(deduped) > n {
		deduped = deduped[len(deduped)-n:]
	}
	return deduped
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
